package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("parley", reg)

	c.ConversationStarted("variant-a")
	c.ConversationStarted("variant-a")
	c.Parley()
	c.Parley()
	c.Parley()
	c.ActTimeout("human")
	c.Violation("all_caps")
	c.RecordWrite("ok")
	c.ConversationCompleted("variant-a", 90*time.Second, 4)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.conversationsStarted.WithLabelValues("variant-a")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.parleysTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.actTimeoutsTotal.WithLabelValues("human")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.violationsTotal.WithLabelValues("all_caps")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recordWritesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.conversationsCompleted.WithLabelValues("variant-a")))
}

func TestCollectorSeparateRegistries(t *testing.T) {
	// Two collectors on separate registries must not collide.
	a := NewCollector("parley", prometheus.NewRegistry())
	b := NewCollector("parley", prometheus.NewRegistry())
	a.Parley()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.parleysTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.parleysTotal))
}
