// Package telemetry implements the metrics pipeline: providers register
// themselves with a process-wide registry, and a collector periodically
// samples every registered provider and hands the batch to a sink.
// Grounded on original_source/media-proxy/include/mesh/metrics.h,
// src/mesh/metrics.cc, include/mesh/metrics_collector.h and
// src/mesh/metrics_collector.cc.
package telemetry

import "sync"

// FieldKind identifies the type carried by a MetricField, matching the
// four value kinds a metrics sink row may carry (§6.4).
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldUint64
	FieldFloat64
	FieldBool
)

// MetricField is a single named value on a Metric sample.
type MetricField struct {
	Name string
	Kind FieldKind

	StringValue string
	Uint64Value uint64
	FloatValue  float64
	BoolValue   bool
}

func StringField(name, v string) MetricField {
	return MetricField{Name: name, Kind: FieldString, StringValue: v}
}

func Uint64Field(name string, v uint64) MetricField {
	return MetricField{Name: name, Kind: FieldUint64, Uint64Value: v}
}

func FloatField(name string, v float64) MetricField {
	return MetricField{Name: name, Kind: FieldFloat64, FloatValue: v}
}

func BoolField(name string, v bool) MetricField {
	return MetricField{Name: name, Kind: FieldBool, BoolValue: v}
}

// Metric is one sampled row: a provider id, a timestamp, and the fields
// the provider's Collect populated. A Metric with no fields is dropped
// by the collector before it reaches the sink.
type Metric struct {
	ProviderID string
	TimestampMS int64
	Fields      []MetricField
}

// Add appends a field to the sample. Convenience used by Collect
// implementations to build up a row.
func (m *Metric) Add(f MetricField) {
	m.Fields = append(m.Fields, f)
}

// Provider is anything that can be sampled by the collector. A provider
// with an empty ID is skipped: the original reserves an empty identifier
// for entities that have not yet been assigned one by their owning
// manager (e.g. a Connection before it has a bridge/group id).
type Provider interface {
	MetricsID() string
	Collect(m *Metric)
}

// ProviderBase is embedded by entities that want MetricsProvider
// semantics. It holds only the metrics id (SetMetricsID/MetricsID); it
// does not register itself. Since Go has no destructor to hook, the
// owner calls Registry.Register on construction and Registry.Unregister
// from its own Shutdown/Close path.
type ProviderBase struct {
	mu sync.RWMutex
	id string
}

// SetMetricsID assigns (or clears, with "") the identifier the collector
// keys this provider's samples by.
func (p *ProviderBase) SetMetricsID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = id
}

// MetricsID returns the currently assigned identifier.
func (p *ProviderBase) MetricsID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}
