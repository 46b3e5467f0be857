package ipc

import "fmt"

// Policy selects how a missing server is started.
type Policy int

const (
	// PolicyRobust tries an external process first and falls back to an
	// in-process worker on any failure. This is the default.
	PolicyRobust Policy = iota

	// PolicyExternal only starts the service as a separate process.
	PolicyExternal

	// PolicyInProcess only starts the service as a worker inside the
	// current process.
	PolicyInProcess
)

func (p Policy) String() string {
	switch p {
	case PolicyRobust:
		return "robust"
	case PolicyExternal:
		return "external"
	case PolicyInProcess:
		return "in-process"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "robust", "":
		return PolicyRobust, nil
	case "external":
		return PolicyExternal, nil
	case "in-process", "internal":
		return PolicyInProcess, nil
	default:
		return PolicyRobust, fmt.Errorf("unknown policy %q", s)
	}
}

// Context carries the environment a service runs in. It is cheap to copy and
// safe to share.
type Context struct {
	// Home is the service state directory. It is created on first use.
	Home string

	// Lib is the directory holding service data files (the keystore lives
	// here).
	Lib string

	// Ephemeral marks a throwaway environment; servers skip persistent
	// caches when set.
	Ephemeral bool

	// Policy selects the launch strategy for Connect.
	Policy Policy
}
