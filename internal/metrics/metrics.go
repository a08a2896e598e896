package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lawcorpus",
			Name:      "documents_processed_total",
			Help:      "Total documents processed by result (success, failed, canceled)",
		},
		[]string{"result"},
	)

	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lawcorpus",
			Name:      "pages_processed_total",
			Help:      "Total pages processed by result (success, dlq, cover)",
		},
		[]string{"result"},
	)

	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lawcorpus",
			Name:      "samples_total",
			Help:      "Corpus samples produced, by label",
		},
		[]string{"label"},
	)

	extractLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lawcorpus",
			Name:      "page_extract_duration_seconds",
			Help:      "Duration of per-page extraction and classification, by stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lawcorpus",
			Name:      "retries_total",
			Help:      "Total number of page retries",
		},
	)

	alignmentMatched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lawcorpus",
			Name:      "groundtruth_matched_ratio",
			Help:      "Fraction of reference paragraphs matched per aligned document",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lawcorpus",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(documentsProcessed, pagesProcessed, samplesTotal, extractLatency, retriesTotal, alignmentMatched, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncDocument(result string) { documentsProcessed.WithLabelValues(result).Inc() }

func IncProcessed(result string) { pagesProcessed.WithLabelValues(result).Inc() }

func IncRetry() { retriesTotal.Inc() }

func IncSamples(label string, n int) {
	samplesTotal.WithLabelValues(label).Add(float64(n))
}

func ObserveStage(stage string, dur time.Duration) {
	extractLatency.WithLabelValues(stage).Observe(dur.Seconds())
}

func ObserveAlignment(matched float64) { alignmentMatched.Observe(matched) }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
