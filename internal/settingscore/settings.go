// Package settingscore holds the fully resolved configuration the
// core takes by constructor injection (§6 "Environment", Design
// Note 9): a plain Settings value, plus a convenience YAML/env loader
// mirroring the teacher's internal/config/config.go for assembling
// one before handing it to the indexer or query service.
package settingscore

// Settings is the resolved configuration the core depends on. No
// environment variables or network endpoints are read below this
// layer — everything the core needs arrives as a field here.
type Settings struct {
	RepoPath      string   `yaml:"repo_path" mapstructure:"repo_path"`
	MasterDBPath  string   `yaml:"master_db_path" mapstructure:"master_db_path"`
	FeatureDBPath string   `yaml:"feature_db_path" mapstructure:"feature_db_path"`
	DefaultBranch string   `yaml:"default_branch" mapstructure:"default_branch"`
	Languages     []string `yaml:"languages" mapstructure:"languages"`
	ProjectSystem string   `yaml:"project_system" mapstructure:"project_system"` // e.g. "swift-package-manager", "tuist", "geko"
}

// Default returns the baseline settings a fresh checkout would use,
// matching the teacher's config.Default() shape: sensible local-dev
// values, no secrets, nothing that requires network access.
func Default() *Settings {
	return &Settings{
		MasterDBPath:  ".swiftgraph/master.db",
		FeatureDBPath: ".swiftgraph/feature.db",
		DefaultBranch: "main",
		Languages:     []string{"swift"},
		ProjectSystem: "tuist",
	}
}
