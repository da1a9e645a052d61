package grove

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "grove"

// Metrics are the runtime's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	filesCompiled  prometheus.Counter
	programs       *prometheus.CounterVec
	spawned        prometheus.Counter
	destroyed      prometheus.Counter
	objects        prometheus.Gauge
	resets         prometheus.Counter
	reloadFailures prometheus.Counter
	tickSeconds    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with registerer.
// A nil registerer leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		filesCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "script_files_compiled_total",
			Help:      "Number of script files compiled",
		}),
		programs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "programs_defined_total",
			Help:      "Number of programs defined, by origin",
		}, []string{"origin"}),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "objects_spawned_total",
			Help:      "Number of objects spawned",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "objects_destroyed_total",
			Help:      "Number of objects destroyed",
		}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "objects",
			Help:      "Number of live objects",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vm_resets_total",
			Help:      "Number of VM resets",
		}),
		reloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reload_failures_total",
			Help:      "Number of reloads refused by the VM",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tick_seconds",
			Help:      "Time spent ticking the object tree",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
	if registerer == nil {
		return m, nil
	}
	var errs []error
	for _, c := range []prometheus.Collector{
		m.filesCompiled, m.programs, m.spawned, m.destroyed,
		m.objects, m.resets, m.reloadFailures, m.tickSeconds,
	} {
		errs = append(errs, registerer.Register(c))
	}
	return m, errors.Join(errs...)
}

func (m *Metrics) fileCompiled() {
	if m != nil {
		m.filesCompiled.Inc()
	}
}

func (m *Metrics) programDefined(origin ProgramOrigin) {
	if m != nil {
		m.programs.WithLabelValues(origin.String()).Inc()
	}
}

func (m *Metrics) objectSpawned(live int) {
	if m != nil {
		m.spawned.Inc()
		m.objects.Set(float64(live))
	}
}

func (m *Metrics) objectDestroyed(live int) {
	if m != nil {
		m.destroyed.Inc()
		m.objects.Set(float64(live))
	}
}

func (m *Metrics) reset() {
	if m != nil {
		m.resets.Inc()
		m.objects.Set(0)
	}
}

func (m *Metrics) reloadFailed() {
	if m != nil {
		m.reloadFailures.Inc()
	}
}

func (m *Metrics) observeTick(d time.Duration) {
	if m != nil {
		m.tickSeconds.Observe(d.Seconds())
	}
}
