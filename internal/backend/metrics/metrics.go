package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "securecam"

var (
	CatalogScans = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: "catalog",
		Name:      "scans_total",
		Help:      "camera directory scans by result",
	}, []string{"result"})
	CatalogScanSeconds = prom.NewHistogram(prom.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: "catalog",
		Name:      "scan_seconds",
		Help:      "duration of camera directory scans",
		Buckets:   prom.DefBuckets,
	})
	CatalogCacheLookups = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: "catalog",
		Name:      "cache_lookups_total",
		Help:      "catalog cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	TranscodesActive = prom.NewGauge(prom.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: "transcode",
		Name:      "active",
		Help:      "number of running ffmpeg transcodes",
	})
	TranscodeFailures = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: "transcode",
		Name:      "failures_total",
		Help:      "ffmpeg transcodes that ended with an error",
	})

	Thumbnails = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: "thumbnail",
		Name:      "requests_total",
		Help:      "thumbnail requests by source (cached, generated, error)",
	}, []string{"source"})
)

func init() {
	prom.MustRegister(CatalogScans)
	prom.MustRegister(CatalogScanSeconds)
	prom.MustRegister(CatalogCacheLookups)
	prom.MustRegister(TranscodesActive)
	prom.MustRegister(TranscodeFailures)
	prom.MustRegister(Thumbnails)
}
