package logger

import (
	"path/filepath"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestWritersDeriveNamesFromDir(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	outW, errW, err := c.Writers("api")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	out, ok := outW.(*lj.Logger)
	if !ok {
		t.Fatalf("stdout writer type %T", outW)
	}
	if out.Filename != filepath.Join(dir, "api.stdout.log") {
		t.Fatalf("stdout path: %s", out.Filename)
	}
	if out.MaxSize != DefaultMaxSizeMB || out.MaxBackups != DefaultMaxBackups || out.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("defaults not applied: %+v", out)
	}
	errL := errW.(*lj.Logger)
	if errL.Filename != filepath.Join(dir, "api.stderr.log") {
		t.Fatalf("stderr path: %s", errL.Filename)
	}
}

func TestWritersExplicitPathsWin(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		Dir:        dir,
		StdoutPath: filepath.Join(dir, "custom.log"),
		MaxSizeMB:  42,
	}
	outW, _, err := c.Writers("api")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	out := outW.(*lj.Logger)
	if out.Filename != filepath.Join(dir, "custom.log") {
		t.Fatalf("explicit path lost: %s", out.Filename)
	}
	if out.MaxSize != 42 {
		t.Fatalf("explicit rotation size lost: %d", out.MaxSize)
	}
}

func TestWritersNilWhenUnconfigured(t *testing.T) {
	outW, errW, err := Config{}.Writers("api")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatal("expected nil writers for empty config")
	}
}
