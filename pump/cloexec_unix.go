//go:build unix

package pump

import "golang.org/x/sys/unix"

// SetCloseOnExec marks fd close-on-exec explicitly. Go's os.Pipe
// descriptors are inheritable by default on most unix targets; a child
// process started after the pump's pipe is created but before the
// pump's owning Cmd spawns would otherwise inherit the write end and
// keep it open past the writer's own Close, defeating EOF detection on
// the read side (spec §4.2).
func SetCloseOnExec(fd int) error {
	unix.CloseOnExec(fd)
	return nil
}
