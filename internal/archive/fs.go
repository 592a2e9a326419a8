package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSConfig captures the parameters for the filesystem archive.
type FSConfig struct {
	// BaseDir is the root directory payloads are written under.
	BaseDir string `mapstructure:"base_dir"`
}

// FS writes payloads to the local filesystem. Useful for single-host
// deployments and development, where a bucket is overkill.
type FS struct {
	baseDir string
}

// NewFS creates a filesystem-backed archive rooted at cfg.BaseDir, creating
// the directory when it does not exist and verifying it is writable.
func NewFS(cfg FSConfig) (*FS, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("remove probe file: %w", err)
	}
	return &FS{baseDir: cfg.BaseDir}, nil
}

// Put writes the payload under the key and returns a file:// URI. The key is
// confined to the base directory.
func (a *FS) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	fullPath := filepath.Join(a.baseDir, key)

	cleanBase := filepath.Clean(a.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes the archive directory")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
