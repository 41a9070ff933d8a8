package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// Environment variables that override file configuration. Secrets are
// expected to arrive this way rather than in the YAML file.
const (
	EnvServerAddr     = "WEBJAM_SERVER_ADDR"
	EnvDatabaseDriver = "WEBJAM_DATABASE_DRIVER"
	EnvDatabaseDSN    = "WEBJAM_DATABASE_DSN"
	EnvRedisAddr      = "WEBJAM_REDIS_ADDR"
	EnvJWTSecret      = "WEBJAM_JWT_SECRET"
	EnvLogLevel       = "WEBJAM_LOG_LEVEL"
)

// LoadConfig builds an AppConfig from defaults, an optional YAML file at
// path, an optional .env file in the working directory and WEBJAM_*
// environment variables, in increasing order of precedence. The result is
// validated before it is returned.
func LoadConfig(path string) (AppConfig, error) {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, ports.NewConfigError(".env", err)
	}

	cfg := DefaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return AppConfig{}, ports.NewConfigError(path, err)
		}
		if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
			return AppConfig{}, ports.NewConfigError(path, err)
		}
	}

	applyEnvOverrides(&cfg, os.LookupEnv)

	if err := ValidateConfig(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML from r on top of the defaults and validates the
// result. Environment variables are not consulted.
func ParseConfig(r io.Reader) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := decodeYAML(r, &cfg); err != nil {
		return AppConfig{}, ports.NewConfigError("yaml", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// decodeYAML uses strict decoding to catch unknown fields.
func decodeYAML(r io.Reader, cfg *AppConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvServerAddr, &cfg.Server.Addr},
		{EnvDatabaseDriver, &cfg.Database.Driver},
		{EnvDatabaseDSN, &cfg.Database.DSN},
		{EnvRedisAddr, &cfg.Cache.RedisAddr},
		{EnvJWTSecret, &cfg.Auth.JWTSecret},
		{EnvLogLevel, &cfg.Log.Level},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

var configValidator = validator.New()

// ValidateConfig checks struct constraints and reports the first failing
// field as a ConfigError keyed by its namespace.
func ValidateConfig(cfg AppConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ports.NewConfigError(fe.Namespace(),
				fmt.Errorf("failed %q validation (value %v)", fe.Tag(), redact(fe)))
		}
		return ports.NewConfigError("config", err)
	}
	return nil
}

// redact hides secret values from validation messages.
func redact(fe validator.FieldError) any {
	if fe.Field() == "JWTSecret" || fe.Field() == "DSN" {
		return "<redacted>"
	}
	return fe.Value()
}
