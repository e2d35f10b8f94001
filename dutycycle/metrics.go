package dutycycle

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the controller's Prometheus collectors.
type Metrics struct {
	cycles      *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	acquisition prometheus.Histogram
	lastUpload  prometheus.Gauge
}

// NewMetrics creates the controller metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sunprobe_cycles_total",
			Help: "Duty cycles run, by acquisition result.",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sunprobe_uploads_total",
			Help: "Upload attempts, by result.",
		}, []string{"result"}),
		acquisition: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sunprobe_acquisition_seconds",
			Help:    "Time spent reading every sensor in one cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
		lastUpload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sunprobe_last_upload_timestamp_seconds",
			Help: "Unix time of the last successful upload.",
		}),
	}
	for _, c := range []prometheus.Collector{m.cycles, m.uploads, m.acquisition, m.lastUpload} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
