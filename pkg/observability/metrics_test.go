package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Registering the same names twice must panic via MustRegister.
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestObserveRelationCheck(t *testing.T) {
	m := NewDefaultMetrics()

	m.ObserveRelationCheck("role-assignable", true, 5*time.Millisecond)
	m.ObserveRelationCheck("role-assignable", false, 5*time.Millisecond)
	m.ObserveRelationCheck("role-assignable", false, 5*time.Millisecond)

	accept := testutil.ToFloat64(m.RelationChecksTotal.WithLabelValues("role-assignable", "accept"))
	reject := testutil.ToFloat64(m.RelationChecksTotal.WithLabelValues("role-assignable", "reject"))
	assert.Equal(t, 1.0, accept)
	assert.Equal(t, 2.0, reject)
}

func TestObserveMove(t *testing.T) {
	m := NewDefaultMetrics()

	m.ObserveMove(7)
	m.ObserveMove(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TreeMovesTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.TreeMovedNodesTotal))
}

func TestObserveTreeQuery(t *testing.T) {
	m := NewDefaultMetrics()

	m.ObserveTreeQuery("current_and_sub", time.Millisecond)
	m.ObserveTreeQuery("current_and_sub", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TreeQueriesTotal.WithLabelValues("current_and_sub")))
}
