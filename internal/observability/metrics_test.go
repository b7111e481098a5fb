package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
}

func TestNotifierCounters(t *testing.T) {
	before := testutil.ToFloat64(NotificationTriggers().WithLabelValues("grade_received", "sent"))
	NotificationTriggers().WithLabelValues("grade_received", "sent").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(NotificationTriggers().WithLabelValues("grade_received", "sent")))

	crossings := testutil.ToFloat64(TrackerCrossings().WithLabelValues("submission"))
	TrackerCrossings().WithLabelValues("submission").Inc()
	require.Equal(t, crossings+1, testutil.ToFloat64(TrackerCrossings().WithLabelValues("submission")))

	ticks := testutil.ToFloat64(TrackerTicks())
	TrackerTicks().Inc()
	require.Equal(t, ticks+1, testutil.ToFloat64(TrackerTicks()))
}
