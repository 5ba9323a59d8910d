package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Stripe        StripeConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for CLI tools that do not require auth secrets.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireSecrets bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("meco_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("meco_port", 8080)
	v.SetDefault("meco_db_path", "data/meco")
	v.SetDefault("meco_jwt_secret", "")
	v.SetDefault("meco_jwt_ttl_hours", 24)
	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("stripe_webhook_secret", "")
	v.SetDefault("meco_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "meco")
	v.SetDefault("meco_service_name", "meco")
	v.SetDefault("meco_version", "dev")
	v.SetDefault("otel_service_version", "")
	v.SetDefault("meco_otel_sampling_ratio", 1.0)
	v.SetDefault("meco_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("meco_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid MECO_PORT: %d", port)
	}

	ttlHours := v.GetInt("meco_jwt_ttl_hours")
	if ttlHours <= 0 {
		ttlHours = 24
	}

	samplingRatio := v.GetFloat64("meco_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = strings.TrimSpace(v.GetString("meco_service_name"))
	}
	if serviceName == "" {
		serviceName = "meco"
	}

	serviceVersion := strings.TrimSpace(v.GetString("meco_version"))
	if serviceVersion == "" {
		serviceVersion = strings.TrimSpace(v.GetString("otel_service_version"))
	}
	if serviceVersion == "" {
		serviceVersion = "dev"
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("meco_otel_metrics_console")
	otelEnabled := v.GetBool("meco_otel_enabled") || otlpEndpoint != "" || metricsConsole

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("meco_db_path")),
		},
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(v.GetString("meco_jwt_secret")),
			TokenTTL:  time.Duration(ttlHours) * time.Hour,
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(v.GetString("stripe_secret_key")),
			WebhookSecret: strings.TrimSpace(v.GetString("stripe_webhook_secret")),
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders),
			OTLPMetricHeaders: mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders),
			ServiceName:       serviceName,
			ServiceVer:        serviceVersion,
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/meco"
	}
	if requireSecrets && !cfg.IsLocalDevelopment() {
		if cfg.Auth.JWTSecret == "" {
			return Config{}, fmt.Errorf("MECO_JWT_SECRET is required outside local/dev environments")
		}
		if cfg.Stripe.WebhookSecret == "" {
			return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required outside local/dev environments")
		}
	}
	if cfg.IsLocalDevelopment() && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "meco-local-dev"
	}

	return cfg, nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimSpace(pair[0])
		value := strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"meco_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
