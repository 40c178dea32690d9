// Package metrics 定义 vidpreview 的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpreview",
			Name:      "candidates_total",
			Help:      "Candidate files seen by batch intake",
		},
		[]string{"result", "code"},
	)

	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpreview",
			Name:      "admissions_total",
			Help:      "Per-file admission outcomes",
		},
		[]string{"status"},
	)

	AdmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vidpreview",
			Name:      "admission_duration_seconds",
			Help:      "Simulated admission duration per file",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpreview",
			Name:      "deletes_total",
			Help:      "Delete requests by outcome",
		},
		[]string{"outcome"},
	)

	Entries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vidpreview",
			Name:      "entries",
			Help:      "Entries currently in the preview collection",
		},
	)

	LiveResources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vidpreview",
			Name:      "preview_resources_live",
			Help:      "Preview resources published and not yet revoked",
		},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpreview",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidpreview",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// RecordCandidate 记录一个候选文件的校验结果（code 在接纳时为空）。
func RecordCandidate(accepted bool, code string) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	CandidatesTotal.WithLabelValues(result, code).Inc()
}

// RecordAdmission 记录单个文件的接纳结果：admitted/failed/dropped。
func RecordAdmission(status string, durationSec float64) {
	AdmissionsTotal.WithLabelValues(status).Inc()
	if status == "admitted" {
		AdmissionDuration.Observe(durationSec)
	}
}

// RecordDelete 记录删除请求：deleted/declined/absent。
func RecordDelete(outcome string) {
	DeletesTotal.WithLabelValues(outcome).Inc()
}

func SetEntries(n int) { Entries.Set(float64(n)) }

func SetLiveResources(n int) { LiveResources.Set(float64(n)) }

// RecordRequest 记录一次 HTTP 请求。
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// Handler 返回默认 registry 的 /metrics 处理器。
func Handler() http.Handler {
	return promhttp.Handler()
}
