package config

// applyLocal fills the docker-compose credentials for APP_ENV=local without
// overriding anything set explicitly.
func applyLocal(cfg *Config) {
	if cfg.Artifact.Enabled {
		cfg.Artifact.AccessKey = firstNonEmpty(cfg.Artifact.AccessKey, "ascend")
		cfg.Artifact.SecretKey = firstNonEmpty(cfg.Artifact.SecretKey, "ascend123")
	}
	if cfg.Quota.Backend == "" && cfg.DatabaseURL == "" && cfg.RedisURL == "" {
		cfg.Quota.Backend = "memory"
	}
}
