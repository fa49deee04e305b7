package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveVerification(PhaseAdmit, "verified", time.Millisecond)
	m.ObserveVerification(PhaseRead, "verified", time.Millisecond)
	m.ObserveVerification(PhaseAdmit, "invalid", time.Millisecond)
	m.IncReplay()
	m.IncBinding("bound")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("verified", PhaseAdmit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("invalid", PhaseAdmit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replays))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.nonceErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bindings.WithLabelValues("bound")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveVerification(PhaseRead, "unsigned", 0)
	m.IncReplay()
	m.IncNonceError()
	m.IncBinding("bound")
}
