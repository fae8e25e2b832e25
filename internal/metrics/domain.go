package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain metrics for the ingest/indexing/search pipeline. These follow
// the same promauto + Record* wrapper shape as the rest of this package
// (see DBQueryDuration/RecordDBQuery in metrics.go) rather than introducing a
// second instrumentation style.

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_uploads_total",
			Help: "Total number of media uploads by outcome",
		},
		[]string{"media_type", "outcome"}, // outcome: "accepted", "hash_mismatch", "duplicate", "error"
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_upload_duration_seconds",
			Help:    "Duration of a full upload-and-verify request",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	AuditAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_append_duration_seconds",
			Help:    "Duration of appending one entry to the hash-chained audit ledger",
			Buckets: prometheus.DefBuckets,
		},
	)

	AuditChainLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_chain_length",
			Help: "Current number of entries in the audit ledger",
		},
	)

	IndexingQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexing_queue_depth",
			Help: "Current number of indexing_jobs rows by status",
		},
		[]string{"status"},
	)

	IndexingJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexing_job_duration_seconds",
			Help:    "Duration of one indexing pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"}, // job's pre-run status: pending, pending_visual, pending_fix
	)

	IndexingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_jobs_total",
			Help: "Total number of indexing jobs processed by outcome",
		},
		[]string{"outcome"}, // "completed", "failed"
	)

	IndexingModalityCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexing_modality_items",
			Help:    "Number of items produced by one modality in one indexing run",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"modality"}, // frame, transcript, caption, clip, action, face
	)

	FaceClusterCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_clusters_total",
			Help: "Current number of face clusters after the last full re-cluster",
		},
	)

	FaceClusterNoiseCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_cluster_noise_total",
			Help: "Current number of unclustered (noise) face detections after the last full re-cluster",
		},
	)

	SearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_query_duration_seconds",
			Help:    "Duration of a search dispatcher call by mode",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search queries by mode",
		},
		[]string{"mode"},
	)
)

func RecordUpload(mediaType, outcome string, duration time.Duration) {
	UploadsTotal.WithLabelValues(mediaType, outcome).Inc()
	UploadDuration.Observe(duration.Seconds())
}

func RecordAuditAppend(duration time.Duration, chainLength int64) {
	AuditAppendDuration.Observe(duration.Seconds())
	AuditChainLength.Set(float64(chainLength))
}

func RecordIndexingJob(preRunStatus, outcome string, duration time.Duration) {
	IndexingJobDuration.WithLabelValues(preRunStatus).Observe(duration.Seconds())
	IndexingJobsTotal.WithLabelValues(outcome).Inc()
}

func RecordModalityCount(modality string, count int) {
	IndexingModalityCount.WithLabelValues(modality).Observe(float64(count))
}

func RecordSearchQuery(mode string, duration time.Duration) {
	SearchQueryDuration.WithLabelValues(mode).Observe(duration.Seconds())
	SearchQueriesTotal.WithLabelValues(mode).Inc()
}

func UpdateIndexingQueueDepth(depthByStatus map[string]int64) {
	for status, depth := range depthByStatus {
		IndexingQueueDepth.WithLabelValues(status).Set(float64(depth))
	}
}

func UpdateFaceClusterCounts(clusters, noise int64) {
	FaceClusterCount.Set(float64(clusters))
	FaceClusterNoiseCount.Set(float64(noise))
}
