package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionsActive  prometheus.Gauge
	AuthRejectedTotal  *prometheus.CounterVec

	UploadsTotal       *prometheus.CounterVec
	UploadsActive      prometheus.Gauge
	UploadBytesTotal   prometheus.Counter
	DownloadBytesTotal prometheus.Counter

	RelayConnected     prometheus.Gauge
	RelayReconnects    prometheus.Counter

	CryptoFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windsend_connections_total",
				Help: "TLS connections accepted",
			},
			[]string{"result"},
		),
		ConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "windsend_connections_active",
				Help: "Currently open connections",
			},
		),
		AuthRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windsend_auth_rejected_total",
				Help: "Authentication rejections by reason",
			},
			[]string{"reason"},
		),
		UploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windsend_uploads_total",
				Help: "Completed upload operations by outcome",
			},
			[]string{"outcome"},
		),
		UploadsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "windsend_uploads_active",
				Help: "Upload operations currently in progress",
			},
		),
		UploadBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "windsend_upload_bytes_total",
				Help: "Total bytes received via pasteFile",
			},
		),
		DownloadBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "windsend_download_bytes_total",
				Help: "Total bytes served via download",
			},
		),
		RelayConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "windsend_relay_connected",
				Help: "Whether the relay client currently holds a session (0/1)",
			},
		),
		RelayReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "windsend_relay_reconnects_total",
				Help: "Relay client reconnect attempts",
			},
		),
		CryptoFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windsend_crypto_failures_total",
				Help: "Decrypt/authentication failures by cipher",
			},
			[]string{"cipher"},
		),
	}
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
