package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	indexDir   = "index"
	answersDir = "answers"
)

// IndexDir returns the directory holding the file-backed collection index,
// creating it if necessary. When no .kbase/ directory resolves, ~/.kbase is
// created.
func (m *Manager) IndexDir(overrideDir string) (string, error) {
	return m.subdir(overrideDir, indexDir)
}

// AnswersDir returns the directory where saved answers are written,
// creating it if necessary.
func (m *Manager) AnswersDir(overrideDir string) (string, error) {
	return m.subdir(overrideDir, answersDir)
}

func (m *Manager) subdir(overrideDir, name string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		target = filepath.Join(home, DirName)
	}

	dir := filepath.Join(target, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", name, err)
	}

	return dir, nil
}
