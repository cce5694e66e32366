package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

const (
	DefaultOutputRoot = "."
	DefaultExtension  = "mp4"

	dirPerm = 0750
)

// ResolveOutputRoot returns the directory footage is written under.
func ResolveOutputRoot(custom string) string {
	if strings.TrimSpace(custom) == "" {
		return DefaultOutputRoot
	}
	return custom
}

// SanitizeName makes a camera name safe to embed in a single path element.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

// ChunkPath derives the file a window starting at start is stored in:
// {root}/{yyyy}/{MM}/{dd}/{yyyy-MM-dd_HH-mm}_{camera}.{ext}
// start must already be in the location whose calendar drives the layout.
func ChunkPath(root string, start time.Time, cameraName, ext string) (string, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	file := fmt.Sprintf("%s_%s.%s", start.Format("2006-01-02_15-04"), SanitizeName(cameraName), ext)
	return SafeJoin(root, start.Format("2006"), start.Format("01"), start.Format("02"), file)
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}

// SafeJoin joins path elements and ensures the result is within the base directory (no traversal).
func SafeJoin(base string, elements ...string) (string, error) {
	for _, el := range elements {
		if filepath.IsAbs(el) || strings.HasPrefix(el, `\\`) {
			return "", fmt.Errorf("path traversal attempt detected: absolute path or UNC not allowed in elements: %s", el)
		}
	}
	joined := filepath.Join(append([]string{base}, elements...)...)

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absBase, absJoined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s is outside %s", absJoined, absBase)
	}

	return joined, nil
}
