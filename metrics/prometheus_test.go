package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder(prometheus.NewRegistry())

	r.EventObserved("watch", true)
	r.EventObserved("watch", false)
	r.EventObserved("watch", false)
	r.RefreshFinished("tick", nil)
	r.RefreshFinished("tick", errors.New("boom"))
	r.ActiveDashboards(1)
	r.SectionFailed("activity")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("watch", "inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("watch", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refresh.WithLabelValues("tick", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sections.WithLabelValues("activity")))
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.EventObserved("download", true)
	r.ActiveDashboards(0)
}
