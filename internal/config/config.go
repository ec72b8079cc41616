package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gubarz/doccov/internal/coverage"
)

// Config holds the application configuration
type Config struct {
	Input          string   `mapstructure:"input"`
	Output         string   `mapstructure:"output"`
	Format         string   `mapstructure:"format"`
	Recursive      bool     `mapstructure:"recursive"`
	Extensions     []string `mapstructure:"extensions"`
	Exclude        []string `mapstructure:"exclude"`
	SpecExtensions []string `mapstructure:"spec_extensions"`
	Concurrency    int      `mapstructure:"concurrency"`
	LogLevel       string   `mapstructure:"log_level"`
	EnvFile        string   `mapstructure:"env_file"`
	FailUnder      float64  `mapstructure:"fail_under"`
}

// C is the global config instance
var C Config

var envFileErr error

// Init initializes configuration with viper. An explicit configFile must
// load; the default search locations may be missing or malformed.
func Init(configFile string) error {
	viper.SetDefault("input", ".")
	viper.SetDefault("output", "")
	viper.SetDefault("format", "json")
	viper.SetDefault("recursive", true)
	viper.SetDefault("extensions", []string{})
	viper.SetDefault("exclude", []string{})
	viper.SetDefault("spec_extensions", coverage.DefaultSpecExtensions)
	viper.SetDefault("concurrency", 0) // 0 = one worker per CPU
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("env_file", "")
	viper.SetDefault("fail_under", 0)

	viper.SetEnvPrefix("DOCCOV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configFile, err)
		}
	} else {
		viper.SetConfigName("doccov")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "doccov"))
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")

		// Try to read config, but don't fail if not found or malformed
		_ = viper.ReadInConfig()
	}

	envFileErr = nil
	if envFile := viper.GetString("env_file"); envFile != "" {
		envFileErr = LoadEnvFile(envFile)
	}

	return viper.Unmarshal(&C)
}

// LoadEnvFile loads variables from a dotenv file, overriding the current
// environment
func LoadEnvFile(path string) error {
	path = expandTilde(path)
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// EnvFileError returns why the configured env file was not loaded by the
// last Init, nil when it was loaded or none is configured. Init does not
// fail on it so the caller can log it once logging is set up.
func EnvFileError() error {
	return envFileErr
}

// GetInput returns the input path with tilde expansion
func GetInput() string {
	return expandTilde(viper.GetString("input"))
}

// GetOutput returns the report path, empty for none
func GetOutput() string {
	return expandTilde(viper.GetString("output"))
}

// GetFormat returns the report encoding
func GetFormat() string {
	return strings.ToLower(viper.GetString("format"))
}

// GetRecursive returns whether directories are walked recursively
func GetRecursive() bool {
	return viper.GetBool("recursive")
}

// GetExtensions returns the input extension filter, empty for all files
func GetExtensions() []string {
	return splitList(viper.GetStringSlice("extensions"))
}

// GetExclude returns glob patterns of paths to leave out
func GetExclude() []string {
	return splitList(viper.GetStringSlice("exclude"))
}

// GetSpecExtensions returns extensions skipped as pre-built test specs
func GetSpecExtensions() []string {
	return splitList(viper.GetStringSlice("spec_extensions"))
}

// GetConcurrency returns the number of files analyzed at once
func GetConcurrency() int {
	return viper.GetInt("concurrency")
}

// GetFailUnder returns the minimum line coverage percentage, 0 to disable
func GetFailUnder() float64 {
	return viper.GetFloat64("fail_under")
}

// GetLogLevel returns the configured log level, warn when invalid
func GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log_level"))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// GetFileTypes returns the configured file type profiles, or the built-in
// markdown profile when none are configured
func GetFileTypes() ([]coverage.FileTypeProfile, error) {
	if !viper.IsSet("file_types") {
		return DefaultFileTypes(), nil
	}

	var profiles []coverage.FileTypeProfile
	if err := viper.UnmarshalKey("file_types", &profiles); err != nil {
		return nil, fmt.Errorf("decoding file_types: %w", err)
	}
	if len(profiles) == 0 {
		return nil, errors.New("file_types is empty")
	}

	var errs []error
	for i := range profiles {
		if err := profiles[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SetInput sets the input path at runtime
func SetInput(path string) {
	viper.Set("input", path)
	C.Input = path
}

// splitList accepts both lists and comma-separated strings
// (flags and env vars deliver the latter)
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
