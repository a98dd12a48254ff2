package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

const (
	PersistNone     = "none"
	PersistFile     = "file"
	PersistPostgres = "postgres"
	PersistSQLite   = "sqlite"
)

// Config aggregates every service setting.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Session  SessionConfig
	Report   ReportConfig
	LogLevel string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration through v. Environment variables are bound
// automatically; values set directly on v take precedence.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	bind(v)

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	sess, err := loadSessionConfig(v)
	if err != nil {
		return nil, err
	}

	rep, err := loadReportConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Session:  sess,
		Report:   rep,
		LogLevel: strings.ToLower(getOrDefault(v, "log_level", "info")),
	}, nil
}

func bind(v *viper.Viper) {
	v.AutomaticEnv()
	// Legacy names kept working alongside the prefixed ones.
	_ = v.BindEnv("honeypot_api_key", "HONEYPOT_API_KEY", "API_KEY")
	_ = v.BindEnv("ark_model", "ARK_MODEL", "Model")

	v.SetDefault("port", "8080")
	v.SetDefault("ark_base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark_region", "cn-beijing")
	v.SetDefault("session_persist", PersistNone)
	v.SetDefault("session_file", "sessions.json")
	v.SetDefault("sqlite_path", "honeypot.db")
	v.SetDefault("report_subject", "honeypot.reports")
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
	// APIKey guards the message routes. Empty disables the check.
	APIKey string
}

func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := getOrDefault(v, "port", "8080")
	apiKey := getOrDefault(v, "honeypot_api_key", "")

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		return ServerConfig{Addr: port, APIKey: apiKey}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, APIKey: apiKey}, nil
}

// AIConfig describes the Ark chat model.
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// InferenceTimeout bounds each model call within a turn.
	InferenceTimeout time.Duration
	ScamThreshold    float64
}

// Enabled reports whether credentials and a model are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the config.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and ARK_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ark_temperature")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ark_top_p")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ark_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDuration(v, "inference_timeout", 4*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	threshold := 0.7
	if override, err := parseOptionalFloat(v, "scam_score_threshold"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override <= 0 || *override > 1 {
			return AIConfig{}, fmt.Errorf("invalid SCAM_SCORE_THRESHOLD value %q: must be in (0, 1]", v.GetString("scam_score_threshold"))
		}
		threshold = *override
	}

	return AIConfig{
		APIKey:           getOrDefault(v, "ark_api_key", ""),
		AccessKey:        getOrDefault(v, "ark_access_key", ""),
		SecretKey:        getOrDefault(v, "ark_secret_key", ""),
		Model:            getOrDefault(v, "ark_model", ""),
		BaseURL:          getOrDefault(v, "ark_base_url", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:           getOrDefault(v, "ark_region", "cn-beijing"),
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		InferenceTimeout: timeout,
		ScamThreshold:    threshold,
	}, nil
}

// SessionConfig describes session lifetime and persistence.
type SessionConfig struct {
	TTL            time.Duration
	SweepEvery     int
	Persist        string
	PersistTimeout time.Duration
	File           string
	DatabaseURL    string
	SQLitePath     string
}

func loadSessionConfig(v *viper.Viper) (SessionConfig, error) {
	ttl, err := parseDuration(v, "session_ttl", time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	persistTimeout, err := parseDuration(v, "session_persist_timeout", 5*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	sweepEvery := 10
	if override, err := parseOptionalInt(v, "session_sweep_every"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			sweepEvery = 1
		} else {
			sweepEvery = *override
		}
	}

	cfg := SessionConfig{
		TTL:            ttl,
		SweepEvery:     sweepEvery,
		Persist:        strings.ToLower(getOrDefault(v, "session_persist", PersistNone)),
		PersistTimeout: persistTimeout,
		File:           getOrDefault(v, "session_file", "sessions.json"),
		DatabaseURL:    getOrDefault(v, "database_url", ""),
		SQLitePath:     getOrDefault(v, "sqlite_path", "honeypot.db"),
	}

	switch cfg.Persist {
	case PersistNone, PersistFile, PersistSQLite:
	case PersistPostgres:
		if cfg.DatabaseURL == "" {
			return SessionConfig{}, fmt.Errorf("SESSION_PERSIST=postgres requires DATABASE_URL")
		}
	default:
		return SessionConfig{}, fmt.Errorf("invalid SESSION_PERSIST value %q: want none, file, postgres or sqlite", cfg.Persist)
	}
	return cfg, nil
}

// ReportConfig describes intelligence report delivery.
type ReportConfig struct {
	URL     string
	Timeout time.Duration
	// Cadence emits a periodic report every N messages; negative disables it.
	Cadence   int
	NATSURL   string
	NATSToken string
	Subject   string
}

func loadReportConfig(v *viper.Viper) (ReportConfig, error) {
	timeout, err := parseDuration(v, "report_timeout", 5*time.Second)
	if err != nil {
		return ReportConfig{}, err
	}

	cadence := 5
	if override, err := parseOptionalInt(v, "report_cadence"); err != nil {
		return ReportConfig{}, err
	} else if override != nil {
		cadence = *override
		if cadence == 0 {
			cadence = -1
		}
	}

	return ReportConfig{
		URL:       getOrDefault(v, "report_url", ""),
		Timeout:   timeout,
		Cadence:   cadence,
		NATSURL:   getOrDefault(v, "nats_url", ""),
		NATSToken: getOrDefault(v, "nats_token", ""),
		Subject:   getOrDefault(v, "report_subject", "honeypot.reports"),
	}, nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}

func getOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", envName(key), value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", envName(key), value, err)
	}
	return &val, nil
}

// parseDuration accepts Go durations ("90s", "1h") or a bare number of seconds.
func parseDuration(v *viper.Viper, key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", envName(key), value)
		}
		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", envName(key), value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", envName(key), value)
	}
	return d, nil
}
