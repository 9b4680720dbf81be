// Package config loads vault settings from defaults, an optional YAML file,
// SECUREVAULT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

// EnvPrefix prefixes every environment override, e.g. SECUREVAULT_DIR.
const EnvPrefix = "SECUREVAULT"

// Config holds every user-tunable setting.
type Config struct {
	Dir              string `mapstructure:"dir" yaml:"-"`
	KDF              string `mapstructure:"kdf" yaml:"kdf"`
	Cipher           string `mapstructure:"cipher" yaml:"cipher"`
	MaxAttempts      int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	Language         string `mapstructure:"language" yaml:"language"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	RecoveryCodeHash string `mapstructure:"recovery_code_hash" yaml:"recovery_code_hash,omitempty"`
}

// DefaultDir is ~/.securevault, or ./.securevault when no home is known.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".securevault"
	}
	return filepath.Join(home, ".securevault")
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dir:         DefaultDir(),
		KDF:         krypto.KDFSHA256,
		Cipher:      krypto.SuiteNameAESGCM,
		MaxAttempts: 3,
		Language:    "en",
		LogLevel:    "warn",
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"dir":                d.Dir,
		"kdf":                d.KDF,
		"cipher":             d.Cipher,
		"max_attempts":       d.MaxAttempts,
		"language":           d.Language,
		"log_level":          d.LogLevel,
		"recovery_code_hash": d.RecoveryCodeHash,
	}
}

// flagKeys maps config keys to the flag names that override them.
var flagKeys = map[string]string{
	"dir":       "dir",
	"language":  "lang",
	"log_level": "log-level",
}

// Load resolves the configuration. configFile may be empty, in which case
// <dir>/config.yaml is read if it exists. cmd may be nil.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for key, name := range flagKeys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return c, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	explicit := configFile != ""
	if !explicit {
		configFile = store.Paths{Dir: v.GetString("dir")}.ConfigPath()
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		// A missing default file is fine; a missing explicit one is not.
		if !missing || explicit {
			return c, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}

	return c, c.Validate()
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var errs []error

	switch c.KDF {
	case krypto.KDFSHA256, krypto.KDFArgon2id:
	default:
		errs = append(errs, fmt.Errorf("kdf must be %q or %q, got %q", krypto.KDFSHA256, krypto.KDFArgon2id, c.KDF))
	}
	if _, err := krypto.ParseSuite(c.Cipher); err != nil {
		errs = append(errs, err)
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if _, err := language.Parse(c.Language); err != nil {
		errs = append(errs, fmt.Errorf("language %q: %w", c.Language, err))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Suite returns the configured AEAD suite.
func (c Config) Suite() krypto.Suite {
	s, err := krypto.ParseSuite(c.Cipher)
	if err != nil {
		return krypto.SuiteAESGCM
	}
	return s
}

// Write stores c as YAML at path with owner-only permissions. The vault
// directory itself is never written since it locates the file.
func Write(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
