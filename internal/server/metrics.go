package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/ragserve/internal/auth"
)

type gateMetrics struct {
	decisions *prometheus.CounterVec
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newGateMetrics(reg prometheus.Registerer) *gateMetrics {
	return &gateMetrics{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_auth_decisions_total",
			Help: "Access gate decisions by rule and status.",
		}, []string{"rule", "status"}),
	}
}

func (m *gateMetrics) observe(d auth.Decision) {
	m.decisions.WithLabelValues(d.Rule, strconv.Itoa(d.Status)).Inc()
}
