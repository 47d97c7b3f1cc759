package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"digestcast/internal/fileutil"
	"digestcast/internal/textutil"
)

// Archive copies the artifact at path into dir under a name derived from
// title and returns the destination. Existing archives are never
// overwritten; a numeric suffix is added instead.
func Archive(path, dir, title string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	name := textutil.SanitizeFileName(title)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	dest, err := fileutil.UniquePath(filepath.Join(dir, name+filepath.Ext(path)))
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFileVerified(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(path), err)
	}
	return dest, nil
}
