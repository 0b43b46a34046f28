package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores artifacts under a base directory.
type LocalProvider struct {
	baseDir string
}

// NewLocalProvider validates and, if needed, creates the base directory.
func NewLocalProvider(baseDir string) (*LocalProvider, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("archive base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create archive directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat archive directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("archive path %q is not a directory", baseDir)
	}
	return &LocalProvider{baseDir: baseDir}, nil
}

// Save writes data to a file under the base directory. Object names must
// stay inside it.
func (p *LocalProvider) Save(_ context.Context, objectName string, data []byte) error {
	if strings.TrimSpace(objectName) == "" {
		return fmt.Errorf("object name is required")
	}
	full := filepath.Join(p.baseDir, objectName)
	cleanBase := filepath.Clean(p.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("object name %q escapes archive directory", objectName)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return fmt.Errorf("write artifact %s: %w", objectName, err)
	}
	return nil
}
