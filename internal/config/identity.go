package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BrowserIDFile is the file under the state directory holding the browser id.
const BrowserIDFile = "browser-id"

// LoadOrCreateBrowserID returns the browser id stored in dir, creating and
// storing a new one on first use.
func LoadOrCreateBrowserID(dir string) (string, error) {
	path := filepath.Join(dir, BrowserIDFile)
	data, err := os.ReadFile(filepath.Clean(path))
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read browser id: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to store browser id: %w", err)
	}
	return id, nil
}
