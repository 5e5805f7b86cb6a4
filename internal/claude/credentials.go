package claude

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrdx0/claude-applet/internal/logger"
)

// LoadCredentials reads stored OAuth tokens from the credentials JSON file.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}

	logger.Info("credentials loaded", "path", path)
	return creds, nil
}

// SaveCredentials persists OAuth tokens, creating the directory as needed.
// Written atomically so a concurrent reader never sees a partial file.
func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp credentials: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			logger.Error("failed to remove temp credentials", "error", removeErr)
		}
		return fmt.Errorf("rename temp credentials: %w", err)
	}

	logger.Info("credentials saved", "path", path)
	return nil
}
