// Package config loads the service configuration from environment variables.
//
// Variables are bound with envconfig struct tags, normalized, and then
// checked with validator tags. Validation failures name the offending
// variable, e.g. "READ_TIMEOUT must satisfy gt=0".
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE must resolve without a system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
)

// CORSConfig lists the browser origins admitted by the HTTP and websocket
// layers. Empty or "*" admits every origin.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" validate:"dive,eq=*|http_url"`
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool          `envconfig:"ENABLE_HSTS" default:"false"`
	HSTSMaxAge time.Duration `envconfig:"HSTS_MAX_AGE" default:"4320h" validate:"gte=0"`
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`
	Endpoint    string  `envconfig:"EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" validate:"required_if=Enabled true"`
	Insecure    bool    `envconfig:"EXPORTER_OTLP_INSECURE" default:"true"`
	ServiceName string  `envconfig:"SERVICE_NAME" default:"agrihub-chat" validate:"required"`
	SampleRatio float64 `envconfig:"TRACES_SAMPLER_ARG" default:"1.0" validate:"gte=0,lte=1"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"20s" validate:"gt=0"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"1048576" validate:"gt=0"`
	GinMode           string        `envconfig:"GIN_MODE" default:"release" validate:"oneof=debug release test"`

	// Logging and docs
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error fatal panic"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	SwaggerEnabled bool   `envconfig:"SWAGGER_ENABLED" default:"false"`
	APIBasePath    string `envconfig:"API_BASE_PATH" default:"/api/v1" validate:"startswith=/"`

	// Storage. An empty SessionDir keeps sessions in memory.
	DBPath     string        `envconfig:"DB_PATH" default:"app.db" validate:"required"`
	SessionDir string        `envconfig:"SESSION_DIR"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"720h" validate:"gt=0"`

	// Messaging. RedisURL enables cross-instance feed fan-out.
	MaxMessageRunes int    `envconfig:"MAX_MESSAGE_RUNES" default:"2000" validate:"min=1"`
	FeedWindow      int    `envconfig:"FEED_WINDOW" default:"200" validate:"min=1"`
	RedisURL        string `envconfig:"REDIS_URL" validate:"omitempty,url"`
	FeedChannel     string `envconfig:"FEED_CHANNEL" default:"agrihub:feed" validate:"required_with=RedisURL"`

	// Time labels
	DisplayLocale   string `envconfig:"DISPLAY_LOCALE" default:"en-PH" validate:"required,bcp47_language_tag"`
	DisplayTimezone string `envconfig:"DISPLAY_TIMEZONE" default:"Asia/Manila" validate:"timezone"`

	// Per-client token bucket
	RateRPS   float64 `envconfig:"RATE_RPS" default:"5" validate:"gte=0"`
	RateBurst int     `envconfig:"RATE_BURST" default:"10" validate:"min=1"`

	CORS     CORSConfig     `envconfig:"CORS"`
	Security SecurityConfig `envconfig:"SECURITY"`

	// IdempotencySweep is a standard cron spec; descriptors such as
	// "@every 10m" are accepted.
	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h" validate:"gt=0"`
	IdempotencySweep string        `envconfig:"IDEMPOTENCY_SWEEP" default:"@every 10m" validate:"cronspec"`

	OTEL OTELConfig `envconfig:"OTEL"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads configuration from the environment, applies defaults,
// normalizes values, and validates the result. A variable that is set but
// cannot be parsed is an error, never a silent fallback to its default.
//
// Nested settings also answer to their unprefixed names, so HSTS_MAX_AGE
// works as well as SECURITY_HSTS_MAX_AGE.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", explain(err))
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for _, s := range []*string{
		&c.Port, &c.DBPath, &c.SessionDir, &c.RedisURL, &c.FeedChannel,
		&c.DisplayLocale, &c.DisplayTimezone, &c.IdempotencySweep,
		&c.OTEL.Endpoint, &c.OTEL.ServiceName,
	} {
		*s = strings.TrimSpace(*s)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.GinMode = strings.ToLower(strings.TrimSpace(c.GinMode))
	if !lo.Contains([]string{"debug", "release", "test"}, c.GinMode) {
		c.GinMode = "release"
	}
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
	c.CORS.AllowedOrigins = cleanList(c.CORS.AllowedOrigins)
}

// explain rewrites validator failures in terms of environment variables.
func explain(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Errorf("%s must satisfy %s", envName(fe.Namespace()), rule))
	}
	return errors.Join(out...)
}

// envName turns "Config.OTEL.SERVICE_NAME" into "OTEL_SERVICE_NAME".
func envName(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return strings.ReplaceAll(rest, ".", "_")
}

// cleanList trims entries and drops blanks; the result is nil when nothing
// is left.
func cleanList(in []string) []string {
	out := lo.Compact(lo.Map(in, func(s string, _ int) string { return strings.TrimSpace(s) }))
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, except
// for the root itself.
func normalizeBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
