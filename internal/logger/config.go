package logger

// LoggingConfig holds the logging configuration. It is embedded in conf.Settings
// under main.log and mapped by viper through the mapstructure tags.
type LoggingConfig struct {
	DefaultLevel string            `yaml:"defaultlevel" mapstructure:"defaultlevel"` // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`         // "Local", "UTC" or IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`
	FileOutput   *FileOutput       `yaml:"fileoutput" mapstructure:"fileoutput"`
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels"` // per-module overrides
}

// ConsoleOutput configures the stdout text handler.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput configures the JSON file handler.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"maxsize" mapstructure:"maxsize"`       // MB before rotation
	MaxAge     int    `yaml:"maxage" mapstructure:"maxage"`         // days to keep rotated files
	MaxBackups int    `yaml:"maxbackups" mapstructure:"maxbackups"` // rotated files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

const (
	DefaultLogLevel   = "info"
	DefaultLogPath    = "logs/safeguard.log"
	DefaultMaxSize    = 100
	DefaultMaxAge     = 30
	DefaultMaxBackups = 10
)

func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		if cfg.FileOutput.Path == "" {
			cfg.FileOutput.Path = DefaultLogPath
		}
		if cfg.FileOutput.MaxSize <= 0 {
			cfg.FileOutput.MaxSize = DefaultMaxSize
		}
		if cfg.FileOutput.MaxAge <= 0 {
			cfg.FileOutput.MaxAge = DefaultMaxAge
		}
		if cfg.FileOutput.MaxBackups <= 0 {
			cfg.FileOutput.MaxBackups = DefaultMaxBackups
		}
	}
}
