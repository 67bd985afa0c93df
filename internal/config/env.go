package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvAPIKey is the environment variable holding the Groq API key.
const EnvAPIKey = "GROQ_API_KEY"

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables already set in the environment win.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// APIKeyFromEnv returns the API key from the environment.
func APIKeyFromEnv() string {
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}
