package process

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"time"
)

// Pid_t is a process ID. It is its own type, rather than a plain int64, so that call sites
// cannot accidentally mix up a PID with an unrelated integer (exit code, file descriptor, etc).
type Pid_t int64

const (
	// A valid exit code of a process is a non-negative number. We use UnknownExitCode to indicate that we have not obtained the exit code yet.
	UnknownExitCode int32 = -1

	// Unknown PID code is used when replica is not started (or fails to start)
	UnknownPID Pid_t = -1
)

// ProcessCreationFlag controls how Executor.StartProcess supervises the process it launches.
type ProcessCreationFlag uint32

const (
	CreationFlagsNone ProcessCreationFlag = 0

	// CreationFlagEnsureKillOnDispose asks the executor to kill the process (and its tree) as
	// soon as the context passed to StartProcess is cancelled, rather than merely detaching from it.
	CreationFlagEnsureKillOnDispose ProcessCreationFlag = 1 << 0
)

type Executor interface {
	// Starts the process described by given command instance.
	// Returns the process PID, its OS start time (used to guard against PID reuse), and a
	// function that enables process exit notifications delivered to the exit handler.
	StartProcess(ctx context.Context, cmd *exec.Cmd, exitHandler ProcessExitHandler, flags ProcessCreationFlag) (pid Pid_t, startTime time.Time, startWaitForProcessExit func(), err error)

	// Stops the process tree rooted at the given PID. processStartTime disambiguates the PID
	// from a later, unrelated process that happens to reuse the same number.
	StopProcess(pid Pid_t, processStartTime time.Time) error
}

type ProcessExitHandler interface {
	// Indicates that process with a given PID has finished execution
	// If err is nil, the process exit code was properly captured and the exitCode value is valid
	// if err is not nil, there was a problem tracking the process and the exitCode value is not valid
	OnProcessExited(pid Pid_t, exitCode int32, err error)
}

// Make it easy to supply a function as a process exit handler.
type ProcessExitHandlerFunc func(Pid_t, int32, error)

func (f ProcessExitHandlerFunc) OnProcessExited(pid Pid_t, exitCode int32, err error) {
	f(pid, exitCode, err)
}

// IntToPidT converts an OS-native pid (as returned by os.Process.Pid) into a Pid_t.
func IntToPidT(val int) (Pid_t, error) {
	if val < 0 || int64(val) > math.MaxUint32 {
		return UnknownPID, fmt.Errorf("value %d is out of range of valid process ID values", val)
	}
	return Pid_t(val), nil
}
