//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/textual/internal/errors"
)

// openNoFollow opens path with O_NOFOLLOW and O_CLOEXEC. Only the last path
// component is covered; ValidatePath keeps files directly inside an allowed
// directory.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, symlinkError(flag)
	case stderrors.Is(err, syscall.ENOENT) && !writing(flag):
		return nil, errors.NewFileNotFound(path)
	}
	return nil, &os.PathError{Op: "open", Path: path, Err: err}
}
