package ipr

import "github.com/prometheus/client_golang/prometheus"

// receiverMetrics counts validation outcomes per terminal state. A nil
// receiver is a no-op so metrics stay opt-in.
type receiverMetrics struct {
	transfers *prometheus.CounterVec
}

// WithMetrics registers receiver outcome counters on reg.
func WithMetrics(reg prometheus.Registerer) ReceiverOption {
	return func(r *Receiver) {
		m := &receiverMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ipr",
				Subsystem: "receiver",
				Name:      "transfers_total",
				Help:      "Incoming transfer validations by terminal outcome.",
			}, []string{"outcome"}),
		}
		reg.MustRegister(m.transfers)
		r.metrics = m
	}
}

func (m *receiverMetrics) observe(outcome ReceiveOutcome) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(string(outcome)).Inc()
}
