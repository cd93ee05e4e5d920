package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
)

// CheckExisting returns an error if dir already holds a duelsync.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	return fmt.Errorf("already initialized\n\nFound existing: %s\n\nUse 'duelsync init --force' to overwrite it", path)
}
