// Package config loads bot configuration from YAML files with
// environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CONVOFLOW").
//	    Load()
//
// Precedence: defaults, then the YAML file, then environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/convoflow/convoflow/skill"
	"github.com/convoflow/convoflow/storage"
)

// Config is the complete bot configuration.
type Config struct {
	// Bot holds the bot's identity and turn handling settings.
	Bot BotConfig `yaml:"bot" env:"BOT"`

	// Storage selects and configures the state persistence backend.
	Storage storage.Config `yaml:"storage" env:"STORAGE"`

	// Skills configures outbound skill invocation.
	Skills SkillsConfig `yaml:"skills" env:"SKILLS"`

	// OAuth configures user sign-in connections.
	OAuth OAuthConfig `yaml:"oauth" env:"OAUTH"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// BotConfig holds the host bot's identity.
type BotConfig struct {
	// AppID is this bot's application id, used as the audience claim on
	// skill responses.
	AppID string `yaml:"app_id" env:"APP_ID"`
	// Locale is the default locale stamped onto outbound activities when
	// the inbound activity carries none.
	Locale string `yaml:"locale" env:"LOCALE"`
	// StateProperty is the conversation state property the dialog stack
	// is persisted under.
	StateProperty string `yaml:"state_property" env:"STATE_PROPERTY"`
}

// SkillsConfig configures the skill client and the known skills.
type SkillsConfig struct {
	// BotID is the caller id presented to skills.
	BotID string `yaml:"bot_id" env:"BOT_ID"`
	// Client tunes the HTTP client used to post activities to skills.
	Client skill.ClientConfig `yaml:"client" env:"CLIENT"`
	// Definitions lists the skills this bot can hand a conversation to.
	Definitions []skill.Info `yaml:"definitions" env:"-"`
}

// OAuthConfig configures sign-in prompts.
type OAuthConfig struct {
	// ConnectionName is the default OAuth connection prompts sign in
	// against.
	ConnectionName string `yaml:"connection_name" env:"CONNECTION_NAME"`
	// Timeout bounds how long a sign-in prompt waits for the user.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths lists zap output sinks.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Locale:        "en-us",
			StateProperty: "dialogState",
		},
		Storage: storage.Config{
			Type: storage.BackendMemory,
		},
		Skills: SkillsConfig{
			Client: skill.DefaultClientConfig(),
		},
		OAuth: OAuthConfig{
			Timeout: 15 * time.Minute,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Validate reports configuration errors in one pass.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	switch c.Storage.Type {
	case storage.BackendMemory, storage.BackendFile, storage.BackendRedis,
		storage.BackendSQLite, storage.BackendMongo:
	default:
		errs = append(errs, fmt.Sprintf("unknown storage backend %q", c.Storage.Type))
	}

	for _, s := range c.Skills.Definitions {
		if s.ID == "" {
			errs = append(errs, "skill definition missing id")
			continue
		}
		if s.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("skill %q missing endpoint", s.ID))
		}
	}
	if len(c.Skills.Definitions) > 0 && c.Skills.BotID == "" {
		errs = append(errs, "skills configured but bot_id is empty")
	}

	if c.OAuth.Timeout < 0 {
		errs = append(errs, "oauth timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Skill returns the configured skill with the given id.
func (c *Config) Skill(id string) (skill.Info, bool) {
	for _, s := range c.Skills.Definitions {
		if s.ID == id {
			return s, true
		}
	}
	return skill.Info{}, false
}

// BuildLogger constructs a zap logger from the log settings. Errors fall
// back to the production defaults rather than failing startup.
func (c LogConfig) BuildLogger() *zap.Logger {
	var level zapcore.Level
	switch c.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if c.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := c.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
