package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDextherMetricsCounters(t *testing.T) {
	m := NewUnregistered()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveSwap("settled")
	m.ObserveSwap("settled")
	m.ObserveSwap("")
	m.ObserveOffer("finalize", "ok")
	m.ObserveAssetsMoved("fungible", 3)
	m.ObserveAssetsMoved("unique", 0)
	m.ObserveFees(2)
	m.ObserveHTTP("/v1/swaps", 200, 15*time.Millisecond)
	m.SetSubscribers(4)

	require.Equal(t, 2.0, testutil.ToFloat64(m.swaps.WithLabelValues("settled")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.swaps.WithLabelValues("unknown")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.offers.WithLabelValues("finalize", "ok")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.assetsMoved.WithLabelValues("fungible")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.feesCharged))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/swaps", "200")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.subscribers))
	require.Error(t, m.Register(reg))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *DextherMetrics
	m.ObserveSwap("settled")
	m.ObserveOffer("swap", "ok")
	m.ObserveAssetsMoved("fungible", 1)
	m.ObserveFees(1)
	m.ObserveHTTP("/", 200, time.Second)
	m.SetSubscribers(1)
}

func TestDextherSingleton(t *testing.T) {
	require.Same(t, Dexther(), Dexther())
}
