package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads a .env file (if present) from the given directory and
// prepares viper to resolve lower_snake keys against the environment.
func LoadConfig(path string) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load(filepath.Join(path, ".env"))
	viper.AutomaticEnv()
}
