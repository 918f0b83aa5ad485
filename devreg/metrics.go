package devreg

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// MetricsHub owns the process metrics for the CAN path. Counters are
// shared by handle; the hub itself registers everything on a private
// prometheus registry so tests stay isolated.
type MetricsHub struct {
	Registry      *prometheus.Registry
	TxFrames      prometheus.Counter
	RxFrames      prometheus.Counter
	DevicesLoaded prometheus.Gauge
}

func NewMetricsHub() (*MetricsHub, error) {
	reg := prometheus.NewRegistry()
	hub := &MetricsHub{
		Registry: reg,
		TxFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sr_can_tx_frames",
			Help: "Total CAN frames sent",
		}),
		RxFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sr_can_rx_frames",
			Help: "Total CAN frames received",
		}),
		DevicesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sr_devices_loaded",
			Help: "Number of device descriptors loaded",
		}),
	}
	for _, c := range []prometheus.Collector{hub.TxFrames, hub.RxFrames, hub.DevicesLoaded} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return hub, nil
}

// EncodeText renders the hub in the Prometheus plaintext convention.
func (h *MetricsHub) EncodeText() (string, error) {
	fams, err := h.Registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gathering metrics: %w", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range fams {
		if err := enc.Encode(f); err != nil {
			return "", fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return buf.String(), nil
}

// Handler serves the hub over HTTP for scraping.
func (h *MetricsHub) Handler() http.Handler {
	return promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{})
}
