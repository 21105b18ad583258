package benchacq

import "github.com/prometheus/client_golang/prometheus"

// Prometheus instrumentation for the acquisition engine. The benchacqd
// HTTP server exposes these on /metrics.
var (
	metricOpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "benchacq_open_sessions",
		Help: "Number of device sessions currently open.",
	})
	metricPacketsDemuxed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchacq_data_packets_total",
		Help: "Data packets demultiplexed into signal buffers.",
	})
	metricSamplesAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchacq_samples_appended_total",
		Help: "Samples appended across all signal value buffers.",
	})
	metricMetaDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchacq_meta_entries_decoded_total",
		Help: "Recognized metadata entries applied to configurables.",
	})
	metricMetaIgnored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchacq_meta_entries_ignored_total",
		Help: "Metadata entries with unrecognized keys (expected, not an error).",
	})
)

func init() {
	prometheus.MustRegister(metricOpenSessions, metricPacketsDemuxed,
		metricSamplesAppended, metricMetaDecoded, metricMetaIgnored)
}
