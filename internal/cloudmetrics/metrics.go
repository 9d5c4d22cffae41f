package cloudmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// CloudMetrics holds the accounting gauges reported to the hosted endpoint.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher

	accountsTotal       prometheus.Gauge
	organizationsTotal  prometheus.Gauge
	activeSubscriptions prometheus.Gauge
	memoryBytes         prometheus.Gauge
}

// New registers the accounting gauges on a private registry so they never
// leak onto the public /metrics surface.
func New(pusher Pusher, instance, version string) *CloudMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"instance_id": instance, "version": version}

	accountsTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rollcall_cloud_accounts_total",
		Help:        "Total provisioned accounts on this instance.",
		ConstLabels: labels,
	})
	organizationsTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rollcall_cloud_organizations_total",
		Help:        "Total organizations on this instance.",
		ConstLabels: labels,
	})
	activeSubscriptions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rollcall_cloud_active_subscriptions",
		Help:        "Subscriptions currently admitting resource creation.",
		ConstLabels: labels,
	})
	memoryBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rollcall_cloud_memory_bytes",
		Help:        "Process memory obtained from the OS.",
		ConstLabels: labels,
	})

	registry.MustRegister(accountsTotal, organizationsTotal, activeSubscriptions, memoryBytes)
	return &CloudMetrics{
		registry:            registry,
		pusher:              pusher,
		accountsTotal:       accountsTotal,
		organizationsTotal:  organizationsTotal,
		activeSubscriptions: activeSubscriptions,
		memoryBytes:         memoryBytes,
	}
}

func (c *CloudMetrics) SetAccountsTotal(v int64) {
	if c == nil {
		return
	}
	c.accountsTotal.Set(float64(v))
}

func (c *CloudMetrics) SetOrganizationsTotal(v int64) {
	if c == nil {
		return
	}
	c.organizationsTotal.Set(float64(v))
}

func (c *CloudMetrics) SetActiveSubscriptions(v int64) {
	if c == nil {
		return
	}
	c.activeSubscriptions.Set(float64(v))
}

func (c *CloudMetrics) SetMemoryUsage(v uint64) {
	if c == nil {
		return
	}
	c.memoryBytes.Set(float64(v))
}

// Push delivers the current gauge values upstream.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}
