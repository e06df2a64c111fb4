//go:build !unix

package pump

// SetCloseOnExec is a no-op on non-unix targets; Windows process creation
// does not inherit arbitrary open handles the way POSIX fork+exec does,
// so there is nothing to mark here.
func SetCloseOnExec(fd int) error {
	return nil
}
