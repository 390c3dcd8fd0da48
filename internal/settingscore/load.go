package settingscore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load assembles Settings from (in ascending precedence) built-in
// defaults, a YAML config file, and SWIFTGRAPH_-prefixed environment
// variables — mirroring the teacher's config.Load: .env files loaded
// first so they can populate the environment variables viper reads.
func Load(path string) (*Settings, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("repo_path", cfg.RepoPath)
	v.SetDefault("master_db_path", cfg.MasterDBPath)
	v.SetDefault("feature_db_path", cfg.FeatureDBPath)
	v.SetDefault("default_branch", cfg.DefaultBranch)
	v.SetDefault("languages", cfg.Languages)
	v.SetDefault("project_system", cfg.ProjectSystem)

	v.SetEnvPrefix("SWIFTGRAPH")
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read settings file: %w", err)
			}
		}
	} else {
		v.SetConfigName("swiftgraph")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read settings file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return cfg, nil
}

// loadEnvFiles loads .env.local then .env, then ~/.swiftgraph/.env,
// the way the teacher's loadEnvFiles does for its own env surface.
// godotenv.Load never overrides a variable that is already set, so the
// real environment wins over .env.local, which wins over .env.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		homeEnvFile := filepath.Join(home, ".swiftgraph", ".env")
		if _, err := os.Stat(homeEnvFile); err == nil {
			godotenv.Load(homeEnvFile)
		}
	}
}
