package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Lock backends understood by LockBackend.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config holds runtime configuration values for the contest API.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventsChannel       string
	JWTSecret           string
	ScoringPolicy       string
	LockBackend         string
	LockTTL             time.Duration
	LockWait            time.Duration
	LeaderboardCacheTTL time.Duration
	SSEKeepAlive        time.Duration
	UploadMaxBytes      int
	UploadRateLimit     int
	CORSAllowOrigins    []string
	RoundDurations      map[string]time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CONTEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Contest API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "file:contest.db?cache=shared")
	v.SetDefault("events.channel", "contest")
	v.SetDefault("scoring.policy", "round_best")
	v.SetDefault("lock.backend", LockBackendMemory)
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.wait", "5s")
	v.SetDefault("leaderboard.cache_ttl", "5s")
	v.SetDefault("sse.keepalive", "15s")
	v.SetDefault("upload.max_bytes", 256*1024)
	v.SetDefault("upload.rate_limit", 10)
	v.SetDefault("round.easy", "500s")
	v.SetDefault("round.medium", "45m")
	v.SetDefault("round.wager", "15m")
	v.SetDefault("round.hard", "30m")

	durations := make(map[string]time.Duration)
	for _, key := range []string{"lock.ttl", "lock.wait", "leaderboard.cache_ttl", "sse.keepalive", "round.easy", "round.medium", "round.wager", "round.hard"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventsChannel:       v.GetString("events.channel"),
		JWTSecret:           v.GetString("jwt.secret"),
		ScoringPolicy:       strings.ToLower(strings.TrimSpace(v.GetString("scoring.policy"))),
		LockBackend:         strings.ToLower(strings.TrimSpace(v.GetString("lock.backend"))),
		LockTTL:             durations["lock.ttl"],
		LockWait:            durations["lock.wait"],
		LeaderboardCacheTTL: durations["leaderboard.cache_ttl"],
		SSEKeepAlive:        durations["sse.keepalive"],
		UploadMaxBytes:      v.GetInt("upload.max_bytes"),
		UploadRateLimit:     v.GetInt("upload.rate_limit"),
		CORSAllowOrigins:    splitList(v.GetString("cors.allow_origins")),
		RoundDurations: map[string]time.Duration{
			"easy":   durations["round.easy"],
			"medium": durations["round.medium"],
			"wager":  durations["round.wager"],
			"hard":   durations["round.hard"],
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.ScoringPolicy {
	case "round_best", "problem_sum":
	default:
		return Config{}, fmt.Errorf("unknown scoring policy %q", cfg.ScoringPolicy)
	}

	switch cfg.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis lock backend requires CONTEST_REDIS_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}

	if cfg.LockTTL <= cfg.LockWait {
		return Config{}, fmt.Errorf("lock.ttl (%s) must exceed lock.wait (%s)", cfg.LockTTL, cfg.LockWait)
	}

	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 256 * 1024
	}

	if cfg.UploadRateLimit <= 0 {
		cfg.UploadRateLimit = 10
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
