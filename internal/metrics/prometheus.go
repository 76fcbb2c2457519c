package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taglink"

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	resolveCache    *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	tagOps          *prometheus.CounterVec
	scanImages      prometheus.Counter
	scansFlushed    prometheus.Counter
	resetEmails     *prometheus.CounterVec
}

// NewPrometheus registers all collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		resolveCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_cache_total",
			Help:      "Tag resolutions by cache result",
		}, []string{"result"}),
		resolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Tag resolution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		tagOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_operations_total",
			Help:      "Tag registry writes by operation",
		}, []string{"op"}),
		scanImages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_images_rendered_total",
			Help:      "QR images rendered",
		}),
		scansFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_flushed_total",
			Help:      "Tag scans persisted by the flush worker",
		}),
		resetEmails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_requests_total",
			Help:      "Password reset requests by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncResolveCacheHit()  { p.resolveCache.WithLabelValues("hit").Inc() }
func (p *PrometheusRecorder) IncResolveCacheMiss() { p.resolveCache.WithLabelValues("miss").Inc() }

func (p *PrometheusRecorder) ObserveResolveDuration(duration time.Duration) {
	p.resolveDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncTagRegistered() { p.tagOps.WithLabelValues("register").Inc() }
func (p *PrometheusRecorder) IncTagUpdated()    { p.tagOps.WithLabelValues("update").Inc() }
func (p *PrometheusRecorder) IncTagRemoved()    { p.tagOps.WithLabelValues("remove").Inc() }

func (p *PrometheusRecorder) IncScanImageRendered() { p.scanImages.Inc() }

func (p *PrometheusRecorder) AddScansFlushed(n int64) {
	if n > 0 {
		p.scansFlushed.Add(float64(n))
	}
}

func (p *PrometheusRecorder) IncResetEmail(outcome string) {
	p.resetEmails.WithLabelValues(outcome).Inc()
}
