package process

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	ok := Spec{Name: "api", Command: "sleep 1"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	cases := []Spec{
		{Command: "sleep 1"},
		{Name: "api"},
		{Name: "api", Command: "sleep 1", MaxStartRetries: -1},
		{Name: "api", Command: "sleep 1", ReadinessDelay: -1},
	}
	for i, s := range cases {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestBuildCommandSimple(t *testing.T) {
	s := Spec{Name: "t", Command: "sleep 5"}
	cmd := s.BuildCommand()
	if !strings.HasSuffix(cmd.Path, "sleep") {
		t.Fatalf("expected sleep binary, got %s", cmd.Path)
	}
	if len(cmd.Args) != 2 || cmd.Args[1] != "5" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestBuildCommandShellMeta(t *testing.T) {
	s := Spec{Name: "t", Command: "echo hi | cat"}
	cmd := s.BuildCommand()
	if cmd.Path != "/bin/sh" {
		t.Fatalf("expected shell wrapping, got %s", cmd.Path)
	}
	if cmd.Args[1] != "-c" || cmd.Args[2] != "echo hi | cat" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestBuildCommandExplicitShell(t *testing.T) {
	s := Spec{Name: "t", Command: `sh -c 'echo a && echo b'`}
	cmd := s.BuildCommand()
	if cmd.Path != "/bin/sh" {
		t.Fatalf("expected /bin/sh, got %s", cmd.Path)
	}
	if cmd.Args[2] != "echo a && echo b" {
		t.Fatalf("double-wrapped shell command: %v", cmd.Args)
	}
}
