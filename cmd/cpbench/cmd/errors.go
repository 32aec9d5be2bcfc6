package cmd

import (
	"errors"
	"fmt"

	"github.com/corey/cpbench/internal/domain/fault"
)

var errDaemonDown = errors.New("daemon is not running\n  → start it:  cpbench daemon start")

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func isSilent(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// describeError renders an error with a hint for the kinds a user can fix.
func describeError(err error) string {
	msg := errorStyle.Render("error:") + " " + err.Error()
	switch fault.KindOf(err) {
	case fault.ProjectNotOpen:
		msg += "\n  → open one first:  cpbench open <dir>"
	case fault.PathRejected:
		msg += "\n  → paths must stay inside the open project"
	case fault.Verification:
		msg += "\n  → the previous content is kept next to the file as .bak"
	}
	return msg
}
