// Package promsink is a concrete telemetry.ReportSink backed by
// github.com/prometheus/client_golang. It plays the role the teacher's
// stats package plays for its StatsD sink (stats/common_statsd.go):
// a thin adapter translating the core's own sample shape into a metrics
// client library's wire types. Numeric fields (u64, float64, bool) are
// exported as gauges; a string field is exported only when its value
// parses as a number, and dropped otherwise.
package promsink

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

// Sink exports every numeric reported field as a gauge labeled by provider id,
// one GaugeVec per field name, lazily created on first sight since the
// set of possible field names isn't known up front (Connection, Group
// and Collector samples each carry a different field set).
type Sink struct {
	registerer prometheus.Registerer
	namespace  string

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// New returns a Sink that registers its gauges with reg under the given
// namespace (e.g. "mediaproxy"). Pass prometheus.DefaultRegisterer to
// use the global registry.
func New(reg prometheus.Registerer, namespace string) *Sink {
	return &Sink{
		registerer: reg,
		namespace:  namespace,
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

var _ telemetry.ReportSink = (*Sink)(nil)

// Report implements telemetry.ReportSink.
func (s *Sink) Report(batch []telemetry.Metric) {
	for _, m := range batch {
		for _, f := range m.Fields {
			v, ok := numericValue(f)
			if !ok {
				continue
			}
			s.gaugeFor(f.Name).WithLabelValues(m.ProviderID).Set(v)
		}
	}
}

func numericValue(f telemetry.MetricField) (float64, bool) {
	switch f.Kind {
	case telemetry.FieldUint64:
		return float64(f.Uint64Value), true
	case telemetry.FieldFloat64:
		return f.FloatValue, true
	case telemetry.FieldBool:
		if f.BoolValue {
			return 1, true
		}
		return 0, true
	case telemetry.FieldString:
		// Some string fields are numeric-looking (e.g. state names are
		// not, but we keep the door open for future fields that are).
		if v, err := strconv.ParseFloat(f.StringValue, 64); err == nil {
			return v, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (s *Sink) gaugeFor(field string) *prometheus.GaugeVec {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gauges[field]; ok {
		return g
	}

	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Subsystem: "connection",
		Name:      field,
		Help:      "mediaproxy metric field " + field,
	}, []string{"provider_id"})

	if err := s.registerer.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			g = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}

	s.gauges[field] = g
	return g
}
