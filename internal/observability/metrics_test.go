package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreRegisteredOnce(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	GradingRequests().WithLabelValues("test").Inc()
	LeaderboardRequests().WithLabelValues("miss").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]struct{}, len(families))
	for _, family := range families {
		names[family.GetName()] = struct{}{}
	}

	for _, name := range []string{"grading_requests_total", "leaderboard_requests_total", "grading_latency_seconds", "realtime_clients_active"} {
		require.Contains(t, names, name)
	}
}
