package workers

import "runtime"

// Workload describes where a task spends its time.
type Workload int

const (
	// CPUBound tasks keep a core busy: one worker per CPU.
	CPUBound Workload = iota
	// IOBound tasks mostly wait on the network or a subprocess: two per CPU.
	IOBound
	// Mixed tasks sit in between: three per two CPUs.
	Mixed
)

func (w Workload) String() string {
	switch w {
	case CPUBound:
		return "cpu"
	case IOBound:
		return "io"
	case Mixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// perCPU returns the number of workers per usable CPU, in halves.
func (w Workload) perCPU() int {
	switch w {
	case IOBound:
		return 4
	case Mixed:
		return 3
	default:
		return 2
	}
}

// Size returns a pool size for w derived from GOMAXPROCS, which follows the
// container CPU quota rather than the host core count. limit > 0 caps the
// result. Size never returns less than 1.
func Size(w Workload, limit int) int {
	return size(runtime.GOMAXPROCS(0), w, limit)
}

func size(cpus int, w Workload, limit int) int {
	n := cpus * w.perCPU() / 2
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
