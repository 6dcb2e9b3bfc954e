//go:build !windows

package process

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	sysconf "github.com/tklauser/go-sysconf"
)

// procStartUnix returns the process start time as Unix seconds. Comparing
// start times lets liveness checks reject a recycled PID. Returns 0 when
// unavailable.
func procStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	if runtime.GOOS != "linux" {
		// Darwin/BSD best effort via gopsutil (sysctl under the hood).
		p, err := gopsproc.NewProcess(int32(pid))
		if err != nil {
			return 0
		}
		ms, err := p.CreateTime()
		if err != nil || ms <= 0 {
			return 0
		}
		return ms / 1000
	}

	ticks := starttimeTicks(pid)
	if ticks <= 0 {
		return 0
	}
	boot := bootTimeUnix()
	if boot == 0 {
		return 0
	}
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		hz = 100
	}
	return boot + ticks/hz
}

// starttimeTicks extracts the starttime stat field, measured in clock ticks
// since boot. The comm field may itself contain spaces and parentheses, so
// parsing anchors on the final ')' rather than splitting the whole line.
func starttimeTicks(pid int) int64 {
	raw, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	i := bytes.LastIndexByte(raw, ')')
	if i < 0 {
		return 0
	}
	fields := bytes.Fields(raw[i+1:])
	// Two fields precede the comm, so starttime (stat field 22) is the
	// 20th field after it.
	const idx = 19
	if len(fields) <= idx {
		return 0
	}
	v, err := strconv.ParseInt(string(fields[idx]), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// bootTimeUnix reads the btime line of /proc/stat.
func bootTimeUnix() int64 {
	raw, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(raw), "\n") {
		rest, ok := strings.CutPrefix(line, "btime ")
		if !ok {
			continue
		}
		bt, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return 0
		}
		return bt
	}
	return 0
}
