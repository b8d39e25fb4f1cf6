package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	// a second registration on the same registry is a programming error
	require.Panics(t, func() { RegisterCollectors(reg) })
}

func TestPostOperationsOutcome(t *testing.T) {
	PostOperationsTotal.WithLabelValues("create_post", Outcome(nil)).Inc()
	PostOperationsTotal.WithLabelValues("create_post", Outcome(errors.New("x"))).Inc()
	PostOperationsTotal.WithLabelValues("create_post", Outcome(errors.New("y"))).Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(PostOperationsTotal.WithLabelValues("create_post", "true")))
	require.Equal(t, 2.0, testutil.ToFloat64(PostOperationsTotal.WithLabelValues("create_post", "false")))
}
