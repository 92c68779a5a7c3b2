package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// characters that are forbidden on at least one filesystem we may share
// archives with (NTFS reserves these; NUL..US break everything)
const forbiddenPathChars = `<>:"|?*`

// ValidatePath normalizes a candidate filesystem path and rejects anything
// that could escape the store or duplicate content through links. It is a
// pure boundary check: one lstat, no mutation, no retry.
func ValidatePath(candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", fmt.Errorf("empty path")
	}

	for _, r := range candidate {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("path %q contains control characters", candidate)
		}
	}
	// the volume prefix on Windows legitimately contains ':'; check the rest
	rest := candidate[len(filepath.VolumeName(candidate)):]
	if strings.ContainsAny(rest, forbiddenPathChars) {
		return "", fmt.Errorf("path %q contains forbidden characters", candidate)
	}

	for _, segment := range strings.Split(filepath.ToSlash(candidate), "/") {
		if segment == ".." {
			return "", fmt.Errorf("path %q contains a parent-directory traversal segment", candidate)
		}
	}

	abs, err := filepath.Abs(filepath.Clean(candidate))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", candidate, err)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat %q: %w", abs, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("path %q is a symbolic link", abs)
	}

	return abs, nil
}
