package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/errors"
)

// MaxInputBytes bounds a single file or inline input.
const MaxInputBytes = 32 << 20

// readInput returns inline content, or the contents of path after validation.
// Exactly one of path and content must be set.
func readInput(path, content string, exts []string, cfg *config.Config) ([]byte, *string, error) {
	if path != "" && content != "" {
		return nil, nil, errors.NewInvalidRequest("specify either path or content, not both")
	}
	if path == "" {
		if content == "" {
			return nil, nil, errors.NewInvalidRequest("path or content is required")
		}
		if len(content) > MaxInputBytes {
			return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("content exceeds %d bytes", MaxInputBytes))
		}
		return []byte(content), nil, nil
	}

	if err := ValidatePath(path, PathCheckRead, exts, cfg); err != nil {
		return nil, nil, err
	}
	file, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.TextualError); ok {
			return nil, nil, err
		}
		return nil, nil, errors.NewInternal(fmt.Errorf("failed to open input file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxInputBytes+1))
	if err != nil {
		return nil, nil, errors.NewInternal(fmt.Errorf("failed to read input file: %w", err))
	}
	if len(data) > MaxInputBytes {
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("file exceeds %d bytes", MaxInputBytes))
	}
	source := path
	return data, &source, nil
}

// writeOutput writes data to path through a temp file and an atomic rename,
// so an existing file survives a failed write.
func writeOutput(path string, data []byte, exts []string, cfg *config.Config) error {
	if err := ValidatePath(path, PathCheckWrite, exts, cfg); err != nil {
		return err
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("output path must not be a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("output destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize output: %w", err))
	}

	success = true
	return nil
}

// writing reports whether flag opens a file for writing.
func writing(flag int) bool {
	return flag&(os.O_WRONLY|os.O_RDWR) != 0
}

func symlinkError(flag int) error {
	if writing(flag) {
		return errors.NewInvalidRequest("output file must not be a symlink")
	}
	return errors.NewInvalidRequest("input file must not be a symlink")
}

// absPath returns the cleaned absolute form of path for reporting.
func absPath(path string) string {
	if abs, err := filepath.Abs(filepath.Clean(path)); err == nil {
		return abs
	}
	return path
}
