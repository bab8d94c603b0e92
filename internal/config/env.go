package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// envFileNames are tried in order; variables already present in the process win.
var envFileNames = []string{".env", ".env.local"}

// loadEnvFiles loads .env files from the working directory and the config directory.
func loadEnvFiles(configDir string) []string {
	dirs := []string{"."}
	if configDir != "" && configDir != "." {
		dirs = append(dirs, configDir)
	}

	var loaded []string
	for _, dir := range dirs {
		for _, name := range envFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := godotenv.Load(path); err != nil {
				slog.Warn("Failed to load env file", logfields.Path(path), logfields.Error(err))
				continue
			}
			slog.Debug("Loaded environment variables", logfields.Path(path))
			loaded = append(loaded, path)
		}
	}
	return loaded
}
