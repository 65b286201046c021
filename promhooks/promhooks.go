// Package promhooks counts segcache hook events with Prometheus.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/segcache"
)

// Hooks increments one counter per event kind, labelled by segment.
// Keys are never used as labels.
type Hooks struct {
	storeErrors        *prometheus.CounterVec
	segmentsDisabled   *prometheus.CounterVec
	corruptEntries     *prometheus.CounterVec
	setRejected        *prometheus.CounterVec
	patternUnsupported *prometheus.CounterVec
}

var _ segcache.Hooks = (*Hooks)(nil)

// New registers the counters with reg under namespace (e.g. "app") and
// subsystem "segcache".
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segcache",
				Name:      "store_errors_total",
				Help:      "Store calls that failed and were served as a miss or no-op",
			},
			[]string{"segment", "op"},
		),
		segmentsDisabled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segcache",
				Name:      "segments_disabled_total",
				Help:      "Segments whose store handle could not be opened",
			},
			[]string{"segment"},
		),
		corruptEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segcache",
				Name:      "corrupt_entries_total",
				Help:      "Entries dropped because they failed to decode",
			},
			[]string{"segment"},
		),
		setRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segcache",
				Name:      "set_rejected_total",
				Help:      "Writes the provider declined under pressure",
			},
			[]string{"segment"},
		),
		patternUnsupported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segcache",
				Name:      "pattern_unsupported_total",
				Help:      "Pattern deletes skipped because the backend cannot enumerate keys",
			},
			[]string{"segment"},
		),
	}
	for _, c := range []prometheus.Collector{
		h.storeErrors, h.segmentsDisabled, h.corruptEntries, h.setRejected, h.patternUnsupported,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) StoreError(segment, op, _ string, _ error) {
	h.storeErrors.WithLabelValues(segment, op).Inc()
}

func (h *Hooks) SegmentDisabled(segment string, _ error) {
	h.segmentsDisabled.WithLabelValues(segment).Inc()
}

func (h *Hooks) CorruptEntry(segment, _ string) {
	h.corruptEntries.WithLabelValues(segment).Inc()
}

func (h *Hooks) ProviderSetRejected(segment, _ string) {
	h.setRejected.WithLabelValues(segment).Inc()
}

func (h *Hooks) PatternUnsupported(segment, _ string) {
	h.patternUnsupported.WithLabelValues(segment).Inc()
}
