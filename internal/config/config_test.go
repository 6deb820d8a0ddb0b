package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CONTEST_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "round_best", cfg.ScoringPolicy)
	require.Equal(t, LockBackendMemory, cfg.LockBackend)
	require.Equal(t, 500*time.Second, cfg.RoundDurations["easy"])
	require.Equal(t, 45*time.Minute, cfg.RoundDurations["medium"])
	require.Equal(t, 15*time.Minute, cfg.RoundDurations["wager"])
	require.Equal(t, 30*time.Minute, cfg.RoundDurations["hard"])
	require.Equal(t, 5*time.Second, cfg.LockWait)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("CONTEST_JWT_SECRET", "secret")
	t.Setenv("CONTEST_APP_PORT", ":9090")
	t.Setenv("CONTEST_SCORING_POLICY", "PROBLEM_SUM")
	t.Setenv("CONTEST_LOCK_BACKEND", "redis")
	t.Setenv("CONTEST_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CONTEST_ROUND_HARD", "1h")
	t.Setenv("CONTEST_CORS_ALLOW_ORIGINS", "https://contest.example, ,https://judge.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "problem_sum", cfg.ScoringPolicy)
	require.Equal(t, LockBackendRedis, cfg.LockBackend)
	require.Equal(t, []string{"https://contest.example", "https://judge.example"}, cfg.CORSAllowOrigins)
	require.Equal(t, time.Hour, cfg.RoundDurations["hard"])
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":     {},
		"unknown policy":     {"CONTEST_JWT_SECRET": "s", "CONTEST_SCORING_POLICY": "latest"},
		"unknown lock":       {"CONTEST_JWT_SECRET": "s", "CONTEST_LOCK_BACKEND": "etcd"},
		"redis without url":  {"CONTEST_JWT_SECRET": "s", "CONTEST_LOCK_BACKEND": "redis"},
		"bad round duration": {"CONTEST_JWT_SECRET": "s", "CONTEST_ROUND_EASY": "soon"},
		"ttl under wait":     {"CONTEST_JWT_SECRET": "s", "CONTEST_LOCK_TTL": "2s", "CONTEST_LOCK_WAIT": "5s"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONTEST_JWT_SECRET", "")
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
