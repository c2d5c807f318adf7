package ops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // input file
	PathCheckWrite                      // redacted output file
)

// File extensions accepted per input kind.
var (
	CSVExtensions          = []string{".csv"}
	ConversationExtensions = []string{".json"}
	MarkdownExtensions     = []string{".md", ".markdown"}
	MarkdownOutExtensions  = []string{".md", ".markdown", ".html"}
	TranscriptExtensions   = []string{".json"}
)

// ValidatePath decides whether a file path may be used for input or output.
//
// A file must sit directly inside ~/.textual/files or one of the absolute
// allowed_paths entries; subdirectories are refused so that only the final
// path component is left for O_NOFOLLOW to guard at open time. With
// allow_unsafe_paths the directory rule is lifted, the symlink rule is not.
func ValidatePath(path string, mode PathCheckMode, exts []string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if ext := strings.ToLower(filepath.Ext(cleaned)); !slices.Contains(exts, ext) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have one of these extensions: %s", strings.Join(exts, ", ")))
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkLocation(abs, cfg); err != nil {
			return err
		}
	}
	if mode == PathCheckRead {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	return rejectSymlink(abs, "path must not be a symlink")
}

// checkLocation enforces the one-level directory rule.
func checkLocation(abs string, cfg *config.Config) error {
	dirs, err := allowedDirs(cfg)
	if err != nil {
		return err
	}
	parent := filepath.Dir(abs)
	if !slices.Contains(dirs, parent) {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
	}
	return rejectSymlink(parent, "parent directory must not be a symlink")
}

// rejectSymlink fails when abs exists and is itself a symlink.
func rejectSymlink(abs, msg string) error {
	info, err := os.Lstat(abs)
	if err == nil && info.Mode()&fs.ModeSymlink != 0 {
		return errors.NewInvalidRequest(msg)
	}
	return nil
}

// allowedDirs lists the directories files may live in, absolute and cleaned.
// Entries that are themselves symlinks are resolved to their target.
func allowedDirs(cfg *config.Config) ([]string, error) {
	base, err := DefaultFilesDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{base}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	dirs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		dir, err := filepath.Abs(filepath.Clean(c))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(dir); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			if dir, err = filepath.EvalSymlinks(dir); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// DefaultFilesDir returns the default files directory (~/.textual/files).
func DefaultFilesDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, ".textual", db.FilesDir), nil
}

// containsTraversal reports whether any component of path is "..".
// Forward slashes count as separators on every platform.
func containsTraversal(path string) bool {
	split := func(r rune) bool { return r == '/' || r == filepath.Separator }
	return slices.Contains(strings.FieldsFunc(path, split), "..")
}
