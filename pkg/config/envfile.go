package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when neither a path nor LUNCHBOX_ENV_FILE is given
const DefaultEnvFile = ".env"

// LoadEnvFile copies KEY=VALUE pairs from path into the process environment
// for local runs. Variables that are already set keep their value. An empty
// path falls back to LUNCHBOX_ENV_FILE, then .env; a missing file is skipped.
// It reports whether a file was read.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = getEnv("LUNCHBOX_ENV_FILE", DefaultEnvFile)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return true, nil
}
