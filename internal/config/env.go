package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvFiles lists the dotenv files consulted at startup, most specific first.
func EnvFiles() []string {
	files := []string{}
	if p := os.Getenv("JARVIS_ENV_FILE"); p != "" {
		files = append(files, p)
	}
	return append(files, ".env")
}

// LoadEnv loads the dotenv files that exist. Variables already present in
// the environment are never overridden, and earlier files win over later
// ones. It returns the files that were loaded.
func LoadEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = EnvFiles()
	}
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
