package telemetry

// ReportSink is the opaque §6.4 metrics sink contract: something that
// accepts batches of sampled rows. The collector treats it as a black
// box; concrete implementations (telemetry/promsink, agentclient) decide
// how a batch is shipped onward.
type ReportSink interface {
	Report(batch []Metric)
}

// ReportSinkFunc adapts a plain function to ReportSink.
type ReportSinkFunc func(batch []Metric)

func (f ReportSinkFunc) Report(batch []Metric) { f(batch) }

// DiscardSink drops every batch. Used as the zero-value default so a
// Collector can be constructed before its real sink is wired up.
var DiscardSink ReportSink = ReportSinkFunc(func([]Metric) {})
