package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	Env             string
	ShutdownTimeout time.Duration
	Log             LogConfig

	Gemini ProviderConfig
	Groq   ProviderConfig

	Generation GenerationConfig
	Chat       ChatConfig

	DatabaseURL string
	RedisURL    string

	Quota  QuotaConfig
	Device DeviceConfig

	Artifact ArtifactConfig
	Auth     AuthConfig

	RateLimit   RateLimitConfig
	CORSOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type ProviderConfig struct {
	Keys         []string
	FastModel    string
	CapableModel string
	BaseURL      string
}

type GenerationConfig struct {
	Interpreter    string
	Stream         bool
	ChunkRunes     int
	ChunkInterval  time.Duration
	AttemptTimeout time.Duration
	RetryMax       int
	RetryBase      time.Duration
	UpstreamRPS    float64
	UpstreamBurst  int
}

type ChatConfig struct {
	Timeout time.Duration
}

type QuotaConfig struct {
	Enabled    bool
	DailyLimit int
	// Backend is "postgres", "redis", "memory" or "" to pick from what is configured.
	Backend string
}

type DeviceConfig struct {
	Enabled      bool
	AccountLimit int
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether exports should go to an S3 bucket.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled &&
		strings.TrimSpace(a.Endpoint) != "" &&
		strings.TrimSpace(a.AccessKey) != "" &&
		strings.TrimSpace(a.SecretKey) != "" &&
		strings.TrimSpace(a.Bucket) != ""
}

type AuthConfig struct {
	// Mode is "supabase", "header" or "none".
	Mode            string
	SupabaseURL     string
	SupabaseAnonKey string
	SessionTTL      time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("app_env", "local")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("gemini_fast_model", "gemini-2.5-flash")
	v.SetDefault("gemini_capable_model", "gemini-2.5-pro")
	v.SetDefault("groq_fast_model", "llama-3.1-8b-instant")
	v.SetDefault("groq_capable_model", "llama-3.3-70b-versatile")
	v.SetDefault("groq_base_url", "https://api.groq.com/openai/v1")

	v.SetDefault("interpreter", "heuristic")
	v.SetDefault("stream", true)
	v.SetDefault("chunk_runes", 50)
	v.SetDefault("chunk_interval", "20ms")
	v.SetDefault("attempt_timeout", "60s")
	v.SetDefault("retry_max", 2)
	v.SetDefault("retry_base", "250ms")
	v.SetDefault("upstream_rps", 0)
	v.SetDefault("upstream_burst", 1)
	v.SetDefault("chat_timeout", "30s")

	v.SetDefault("quota_enabled", true)
	v.SetDefault("quota_daily_limit", 3)
	v.SetDefault("quota_backend", "")
	v.SetDefault("device_check_enabled", true)
	v.SetDefault("device_account_limit", 3)

	v.SetDefault("artifact_s3_region", "us-east-1")
	v.SetDefault("artifact_s3_bucket", "ascend-blueprints")

	v.SetDefault("auth_mode", "header")
	v.SetDefault("auth_session_ttl", "5m")

	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("cors_origins", "")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	env := strings.TrimSpace(v.GetString("app_env"))
	proxies, err := parseProxies(splitList(v.GetString("trusted_proxies")))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := &Config{
		Port:            normalizePort(v.GetString("port")),
		Env:             env,
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		},
		Gemini: ProviderConfig{
			Keys:         numberedKeys(v, "gemini_api_key"),
			FastModel:    v.GetString("gemini_fast_model"),
			CapableModel: v.GetString("gemini_capable_model"),
		},
		Groq: ProviderConfig{
			Keys:         numberedKeys(v, "groq_api_key"),
			FastModel:    v.GetString("groq_fast_model"),
			CapableModel: v.GetString("groq_capable_model"),
			BaseURL:      v.GetString("groq_base_url"),
		},
		Generation: GenerationConfig{
			Interpreter:    v.GetString("interpreter"),
			Stream:         v.GetBool("stream"),
			ChunkRunes:     v.GetInt("chunk_runes"),
			ChunkInterval:  v.GetDuration("chunk_interval"),
			AttemptTimeout: v.GetDuration("attempt_timeout"),
			RetryMax:       v.GetInt("retry_max"),
			RetryBase:      v.GetDuration("retry_base"),
			UpstreamRPS:    v.GetFloat64("upstream_rps"),
			UpstreamBurst:  v.GetInt("upstream_burst"),
		},
		Chat:        ChatConfig{Timeout: v.GetDuration("chat_timeout")},
		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		RedisURL:    strings.TrimSpace(v.GetString("redis_url")),
		Quota: QuotaConfig{
			Enabled:    v.GetBool("quota_enabled"),
			DailyLimit: v.GetInt("quota_daily_limit"),
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("quota_backend"))),
		},
		Device: DeviceConfig{
			Enabled:      v.GetBool("device_check_enabled"),
			AccountLimit: v.GetInt("device_account_limit"),
		},
		Artifact: loadArtifactConfig(v, env),
		Auth: AuthConfig{
			Mode:            strings.ToLower(strings.TrimSpace(v.GetString("auth_mode"))),
			SupabaseURL:     strings.TrimSpace(v.GetString("supabase_url")),
			SupabaseAnonKey: firstNonEmpty(v.GetString("supabase_anon_key"), v.GetString("supabase_service_key")),
			SessionTTL:      v.GetDuration("auth_session_ttl"),
		},
		RateLimit: RateLimitConfig{
			RPS:            v.GetFloat64("rate_limit_rps"),
			Burst:          v.GetInt("rate_limit_burst"),
			TrustedProxies: proxies,
		},
		CORSOrigins: splitList(v.GetString("cors_origins")),
	}
	if strings.EqualFold(env, "local") {
		applyLocal(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case "supabase":
		if c.Auth.SupabaseURL == "" || strings.TrimSpace(c.Auth.SupabaseAnonKey) == "" {
			return fmt.Errorf("auth mode supabase needs SUPABASE_URL and SUPABASE_ANON_KEY")
		}
	case "header", "none":
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	switch c.Quota.Backend {
	case "", "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unknown quota backend %q", c.Quota.Backend)
	}
	if c.Quota.Backend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("quota backend postgres needs DATABASE_URL")
	}
	if c.Quota.Backend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("quota backend redis needs REDIS_URL")
	}
	if c.Generation.ChunkRunes < 0 {
		return fmt.Errorf("chunk_runes must not be negative")
	}
	return nil
}

// numberedKeys collects PREFIX, PREFIX_1..PREFIX_9 and the comma separated
// PREFIXS, in that order.
func numberedKeys(v *viper.Viper, prefix string) []string {
	var keys []string
	keys = append(keys, splitList(v.GetString(prefix))...)
	for i := 1; i <= 9; i++ {
		keys = append(keys, splitList(v.GetString(prefix+"_"+strconv.Itoa(i)))...)
	}
	keys = append(keys, splitList(v.GetString(prefix+"s"))...)
	return keys
}

func loadArtifactConfig(v *viper.Viper, env string) ArtifactConfig {
	endpoint := strings.TrimSpace(v.GetString("artifact_s3_endpoint"))
	useSSL := resolveUseSSL(v.GetString("artifact_s3_use_ssl"))
	if strings.EqualFold(env, "local") {
		if minio := strings.TrimSpace(v.GetString("artifact_minio_endpoint")); minio != "" {
			endpoint = minio
			useSSL = false
		}
	}
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    v.GetString("artifact_s3_region"),
		AccessKey: firstNonEmpty(v.GetString("artifact_s3_access_key"), v.GetString("minio_root_user")),
		SecretKey: firstNonEmpty(v.GetString("artifact_s3_secret_key"), v.GetString("minio_root_password")),
		Bucket:    v.GetString("artifact_s3_bucket"),
		UseSSL:    useSSL,
	}
}

func resolveUseSSL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return b
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ":8081"
	}
	if strings.HasPrefix(p, ":") || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseProxies accepts bare addresses and CIDR ranges.
func parseProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
