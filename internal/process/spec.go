package process

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mkarlsen/gatehouse/internal/logger"
)

// Spec describes one managed service. It is assembled from configuration
// before the supervisor starts and is never mutated afterwards.
type Spec struct {
	Name            string        `json:"name" mapstructure:"name"`
	Command         string        `json:"command" mapstructure:"command"`
	WorkDir         string        `json:"work_dir" mapstructure:"work_dir"`
	Env             []string      `json:"env" mapstructure:"env"`
	AutoRestart     bool          `json:"auto_restart" mapstructure:"auto_restart"`
	MaxStartRetries int           `json:"max_start_retries" mapstructure:"max_start_retries"`
	ReadinessDelay  time.Duration `json:"readiness_delay" mapstructure:"readiness_delay"`
	Critical        bool          `json:"critical" mapstructure:"critical"`
	Log             logger.Config `json:"log" mapstructure:"log"`
}

// Validate rejects specs that the supervisor cannot run.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service requires a name")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("service %s requires a command", s.Name)
	}
	if s.MaxStartRetries < 0 {
		return fmt.Errorf("service %s: max_start_retries must be >= 0", s.Name)
	}
	if s.ReadinessDelay < 0 {
		return fmt.Errorf("service %s: readiness_delay must be >= 0", s.Name)
	}
	return nil
}

// shellMeta characters force execution through /bin/sh.
const shellMeta = "|&;<>*?`$\"'(){}[]~"

// BuildCommand constructs an *exec.Cmd for the spec's command string.
// Plain argv commands run directly; anything needing shell semantics runs
// under /bin/sh -c. The absolute shell path avoids PATH dependence when Env
// is overridden.
func (s *Spec) BuildCommand() *exec.Cmd {
	raw := strings.TrimSpace(s.Command)
	if raw == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if script, ok := shellScript(raw); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", script)
	}
	argv := strings.Fields(raw)
	// #nosec G204
	return exec.Command(argv[0], argv[1:]...)
}

// shellScript decides whether raw needs a shell and returns the script to
// hand to it. An explicit "sh -c '...'" wrapper is unwrapped rather than
// wrapped a second time; the outer quote pair around its script is stripped
// so the shell sees the script itself.
func shellScript(raw string) (string, bool) {
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if rest, ok := strings.CutPrefix(raw, p); ok {
			return stripOuterQuotes(rest), true
		}
	}
	if strings.ContainsAny(raw, shellMeta) {
		return raw, true
	}
	return "", false
}

func stripOuterQuotes(s string) string {
	if len(s) >= 2 {
		if c := s[0]; (c == '\'' || c == '"') && s[len(s)-1] == c {
			return s[1 : len(s)-1]
		}
	}
	return s
}
