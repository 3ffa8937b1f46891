package deskctl

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DESKCTL_WEBSERVICES_URL.
const EnvPrefix = "DESKCTL"

// Config is the deskctl configuration after defaults, file and environment
// have been merged.
type Config struct {
	WebservicesURL   string        `mapstructure:"webservices_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CryptoPassphrase string        `mapstructure:"crypto_passphrase"`
	CryptoKDF        string        `mapstructure:"crypto_kdf"`
	CryptoIterations int           `mapstructure:"crypto_iterations"`
	ScreensFile      string        `mapstructure:"screens_file"`
	Actor            string        `mapstructure:"actor"`
	BatchSize        int           `mapstructure:"batch_size"`
	BatchDelay       time.Duration `mapstructure:"batch_delay"`
}

// DefaultConfigDir is where deskctl looks for deskctl.yaml when --config
// is not given.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "paydesk")
}

// LoadConfig reads cfgFile (or deskctl.yaml from the default locations),
// applies DESKCTL_* environment overrides and validates the result. A
// missing default file is not an error; a missing explicit file is.
func LoadConfig(v *viper.Viper, cfgFile string) (Config, error) {
	v.SetDefault("webservices_url", "http://localhost:8081/ws")
	v.SetDefault("timeout", upstream.DefaultTimeout)
	v.SetDefault("crypto_kdf", cryptobox.KDFEVP)
	v.SetDefault("crypto_iterations", cryptobox.DefaultIterations)
	v.SetDefault("screens_file", "")
	v.SetDefault("crypto_passphrase", "")
	v.SetDefault("actor", currentUser())
	v.SetDefault("batch_size", dispatch.DefaultBatchSize)
	v.SetDefault("batch_delay", dispatch.DefaultBatchDelay)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("deskctl")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if _, err := upstream.ParseBaseURL(cfg.WebservicesURL); err != nil {
		return Config{}, err
	}
	if cfg.BatchSize < 1 {
		return Config{}, fmt.Errorf("batch_size must be at least 1 (got %d)", cfg.BatchSize)
	}
	return cfg, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "deskctl"
}
