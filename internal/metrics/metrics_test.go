package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// The rejection counter is labeled by every deposit path the services
// record: local, remote and gateway, each with a reason. A cardinality
// mismatch here panics at the first rejected deposit.
func TestDepositsRejectedTakesKindAndReason(t *testing.T) {
	before := testutil.ToFloat64(DepositsRejected.WithLabelValues("local", "zero_value"))

	assert.NotPanics(t, func() {
		DepositsRejected.WithLabelValues("local", "zero_value").Inc()
		DepositsRejected.WithLabelValues("remote", "replay").Inc()
		DepositsRejected.WithLabelValues("gateway", "not_allowed").Inc()
	})

	after := testutil.ToFloat64(DepositsRejected.WithLabelValues("local", "zero_value"))
	assert.Equal(t, before+1, after)
}
