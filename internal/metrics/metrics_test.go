package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submitted("api")
		m.Recorded("completed")
		m.Delivered()
		m.Dropped()
		m.DecodeFailed()
		m.AgentConnected()
		m.AgentDisconnected()
	})
}

func TestCounters(t *testing.T) {
	m := New(nil)

	m.Submitted("api")
	m.Submitted("api")
	m.Submitted("generator")
	m.Dropped()
	m.AgentConnected()
	m.AgentConnected()
	m.AgentDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsSubmitted.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsSubmitted.WithLabelValues("generator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentsConnected))
}

func TestHandlerExposesLedgerGauge(t *testing.T) {
	m := New(func() float64 { return 3 })

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shellcast_ledger_commands 3")
}
