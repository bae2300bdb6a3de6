package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_extract_jobs_processed_total",
		Help: "Total number of extraction jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_extract_stage_duration_seconds",
		Help:    "Duration of job and pipeline stages",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	PacketsReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_extract_packets_read_total",
		Help: "Packets read from containers, by routing (video or skipped)",
	}, []string{"route"})

	FramesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_extract_frames_written_total",
		Help: "Total number of frame images written across all runs",
	})

	FormatWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_extract_format_warnings_total",
		Help: "Frames converted from a pixel format other than yuv420p",
	})

	PipelineFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_extract_pipeline_failures_total",
		Help: "Pipeline runs that failed, by failure kind",
	}, []string{"kind"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_extract_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_extract_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
