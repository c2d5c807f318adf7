//go:build windows

package ops

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/hpungsan/textual/internal/errors"
)

// openNoFollow opens path after refusing a symlink. Windows has no
// O_NOFOLLOW, and creating symlinks there needs elevated privileges.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, symlinkError(flag)
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil && !writing(flag) && stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
