package config

// Config represents the complete quarry configuration.
// It can be loaded from .quarry/config.yml with environment variable overrides.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Queries QueriesConfig `yaml:"queries" mapstructure:"queries"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// PathsConfig defines which source units to extract and which to skip.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for source units
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// QueriesConfig locates user-supplied query definitions.
type QueriesConfig struct {
	Dirs []string `yaml:"dirs" mapstructure:"dirs"` // .scm directories merged over the bundled sets
}

// ExtractConfig tunes the batch runner.
type ExtractConfig struct {
	Workers     int  `yaml:"workers" mapstructure:"workers"`         // concurrent unit extractions; 0 means NumCPU
	DebounceMs  int  `yaml:"debounce_ms" mapstructure:"debounce_ms"` // watch mode settle time in milliseconds
	Incremental bool `yaml:"incremental" mapstructure:"incremental"` // skip units whose stored hash is current
}

// StorageConfig defines the optional catalog sink.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"` // SQLite catalog path; empty disables the sink
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{
				"**/*.rs",
				"**/*.py",
				"**/*.ts",
				"**/*.tsx",
				"**/*.c",
				"**/*.h",
				"**/*.java",
				"**/*.rb",
				"**/*.php",
			},
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"target/**",
				"__pycache__/**",
			},
		},
		Queries: QueriesConfig{
			Dirs: []string{},
		},
		Extract: ExtractConfig{
			Workers:     0, // NumCPU
			DebounceMs:  500,
			Incremental: false,
		},
		Storage: StorageConfig{
			DatabasePath: "", // Empty means no SQLite sink
		},
	}
}
