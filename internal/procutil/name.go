package procutil

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// MatchesName reports whether the process with the given pid currently runs
// an executable whose name contains want. PID files can outlive their
// process and the pid can be recycled by the kernel, so liveness checks
// pair the signal probe with this name check before trusting a recorded
// pid. Lookup failures count as no match.
func MatchesName(pid int, want string) bool {
	if pid <= 0 || want == "" {
		return false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	name, err := proc.Name()
	if err != nil {
		return false
	}

	return strings.Contains(name, want)
}
