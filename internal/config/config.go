// Package config loads settings from keyrecovery.yaml and KEYRECOVERY_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/KeyRecovery/auth"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
	"github.com/Hussein-Mazeh/KeyRecovery/krypto"
)

const (
	// FileName is the config file base name, without extension.
	FileName  = "keyrecovery"
	envPrefix = "KEYRECOVERY"
	appDir    = "keyrecovery"
)

// Config is the full settings tree.
type Config struct {
	LogLevel    string       `mapstructure:"log_level"`
	DataDir     string       `mapstructure:"data_dir"`
	Candidates  int          `mapstructure:"candidates"`
	MaxAttempts int          `mapstructure:"max_attempts"`
	Keychain    bool         `mapstructure:"keychain"`
	KDF         KDFConfig    `mapstructure:"kdf"`
	Bounds      BoundsConfig `mapstructure:"bounds"`
	Policy      PolicyConfig `mapstructure:"policy"`
}

// KDFConfig selects the derivation used for new backups.
type KDFConfig struct {
	Name        string `mapstructure:"name"`
	Time        int    `mapstructure:"time"`
	MemoryMB    int    `mapstructure:"memory_mb"`
	Parallelism int    `mapstructure:"parallelism"`
	LogN        int    `mapstructure:"log_n"`
	R           int    `mapstructure:"r"`
	P           int    `mapstructure:"p"`
}

// BoundsConfig caps the KDF cost accepted from a backup.
type BoundsConfig struct {
	MaxTime        int `mapstructure:"max_time"`
	MaxMemoryMB    int `mapstructure:"max_memory_mb"`
	MaxParallelism int `mapstructure:"max_parallelism"`
	MinLogN        int `mapstructure:"min_log_n"`
	MaxLogN        int `mapstructure:"max_log_n"`
	MaxR           int `mapstructure:"max_r"`
	MaxP           int `mapstructure:"max_p"`
}

// PolicyConfig is the backup password policy.
type PolicyConfig struct {
	MinLength      int  `mapstructure:"min_length"`
	RequireLetter  bool `mapstructure:"require_letter"`
	RequireUpper   bool `mapstructure:"require_upper"`
	RequireDigit   bool `mapstructure:"require_digit"`
	RequireSpecial bool `mapstructure:"require_special"`
	MinStrength    int  `mapstructure:"min_strength"`
}

// Defaults returns the built-in settings as a flat key map.
func Defaults() map[string]any {
	kdf := secret.DefaultKDFParams()
	scrypt := secret.ScryptKDFParams()
	b := secret.DefaultBounds()
	p := auth.DefaultPolicyOptions()

	return map[string]any{
		"log_level":    "info",
		"data_dir":     defaultDataDir(),
		"candidates":   keystore.DefaultCandidates,
		"max_attempts": 0,
		"keychain":     false,

		"kdf.name":        kdf.Name,
		"kdf.time":        int(kdf.Time),
		"kdf.memory_mb":   int(kdf.MemoryMB),
		"kdf.parallelism": int(kdf.Parallelism),
		"kdf.log_n":       int(scrypt.LogN),
		"kdf.r":           int(scrypt.R),
		"kdf.p":           int(scrypt.P),

		"bounds.max_time":        int(b.MaxTime),
		"bounds.max_memory_mb":   int(b.MaxMemoryMB),
		"bounds.max_parallelism": int(b.MaxParallelism),
		"bounds.min_log_n":       int(b.MinLogN),
		"bounds.max_log_n":       int(b.MaxLogN),
		"bounds.max_r":           int(b.MaxR),
		"bounds.max_p":           int(b.MaxP),

		"policy.min_length":      p.MinLength,
		"policy.require_letter":  p.RequireLetter,
		"policy.require_upper":   p.RequireUpper,
		"policy.require_digit":   p.RequireDigit,
		"policy.require_special": p.RequireSpecial,
		"policy.min_strength":    p.MinStrengthScore,
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDir)
	}
	return "." + appDir
}

// Load reads settings. An explicit path must exist; otherwise the user config
// dir and the working directory are searched and a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appDir))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the settings describe a usable KeyStore.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Candidates < 1 || c.Candidates > 100 {
		return fmt.Errorf("config: candidates must be in [1, 100], got %d", c.Candidates)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config: max_attempts must not be negative, got %d", c.MaxAttempts)
	}
	if c.Policy.MinLength < 1 {
		return fmt.Errorf("config: policy.min_length must be positive, got %d", c.Policy.MinLength)
	}
	if c.Policy.MinStrength < 0 || c.Policy.MinStrength > 4 {
		return fmt.Errorf("config: policy.min_strength must be in [0, 4], got %d", c.Policy.MinStrength)
	}
	if err := c.boundsInRange(); err != nil {
		return err
	}
	if err := c.SecretBounds().Check(c.KDFParams()); err != nil {
		return fmt.Errorf("config: kdf: %w", err)
	}
	return nil
}

func (c *Config) boundsInRange() error {
	k, b := c.KDF, c.Bounds
	for _, f := range []struct {
		name string
		val  int
		max  int64
	}{
		{"kdf.time", k.Time, math.MaxUint32},
		{"kdf.memory_mb", k.MemoryMB, krypto.MaxArgon2MemoryMB},
		{"kdf.parallelism", k.Parallelism, math.MaxUint8},
		{"kdf.log_n", k.LogN, math.MaxUint8},
		{"kdf.r", k.R, math.MaxUint32},
		{"kdf.p", k.P, math.MaxUint32},
		{"bounds.max_time", b.MaxTime, math.MaxUint32},
		{"bounds.max_memory_mb", b.MaxMemoryMB, krypto.MaxArgon2MemoryMB},
		{"bounds.max_parallelism", b.MaxParallelism, math.MaxUint8},
		{"bounds.min_log_n", b.MinLogN, math.MaxUint8},
		{"bounds.max_log_n", b.MaxLogN, math.MaxUint8},
		{"bounds.max_r", b.MaxR, math.MaxUint32},
		{"bounds.max_p", b.MaxP, math.MaxUint32},
	} {
		if f.val < 0 || int64(f.val) > f.max {
			return fmt.Errorf("config: %s must be in [0, %d], got %d", f.name, f.max, f.val)
		}
	}
	return nil
}

// KDFParams converts the kdf section.
func (c *Config) KDFParams() secret.KDFParams {
	k := c.KDF
	return secret.KDFParams{
		Name:        strings.ToLower(strings.TrimSpace(k.Name)),
		Time:        uint32(k.Time),
		MemoryMB:    uint32(k.MemoryMB),
		Parallelism: uint8(k.Parallelism),
		LogN:        uint8(k.LogN),
		R:           uint32(k.R),
		P:           uint32(k.P),
	}
}

// SecretBounds converts the bounds section.
func (c *Config) SecretBounds() secret.Bounds {
	b := c.Bounds
	return secret.Bounds{
		MaxTime:        uint32(b.MaxTime),
		MaxMemoryMB:    uint32(b.MaxMemoryMB),
		MaxParallelism: uint8(b.MaxParallelism),
		MinLogN:        uint8(b.MinLogN),
		MaxLogN:        uint8(b.MaxLogN),
		MaxR:           uint32(b.MaxR),
		MaxP:           uint32(b.MaxP),
	}
}

// PasswordPolicy compiles the policy section.
func (c *Config) PasswordPolicy() auth.Policy {
	p := c.Policy
	return auth.PolicyOptions{
		MinLength:        p.MinLength,
		RequireLetter:    p.RequireLetter,
		RequireUpper:     p.RequireUpper,
		RequireDigit:     p.RequireDigit,
		RequireSpecial:   p.RequireSpecial,
		MinStrengthScore: p.MinStrength,
	}.Policy()
}

// RegistryPath is the SQLite file holding backup and restore records.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// BackupDir is where backup files are written by default.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// KeyStoreOptions returns the options that build a KeyStore from c.
func (c *Config) KeyStoreOptions() []keystore.Option {
	return []keystore.Option{
		keystore.WithPolicy(c.PasswordPolicy()),
		keystore.WithKDF(c.KDFParams()),
		keystore.WithBounds(c.SecretBounds()),
		keystore.WithCandidates(c.Candidates),
	}
}
