// Package metrics defines the process-wide Prometheus counters,
// grounded on the metricUpdatesDropped / metricUpdatesSent /
// metricSlotUpdates counters referenced (but defined out-of-file) by
// terorie-pythian/schedule/buffer.go and schedule/slots.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SlotUpdates counts every slot advance accepted by SlotTracker, from
// either the websocket or the RPC fallback source, plus every
// first-shred slot ping received by the shred watcher.
var SlotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "evorebot",
	Name:      "slot_updates_total",
	Help:      "Total slot observations accepted by the slot tracker or received by the shred watcher.",
})

// SendsDispatched counts every FastSender dispatch attempt, labeled by
// the destination endpoint.
var SendsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "evorebot",
	Name:      "sends_dispatched_total",
	Help:      "Total transaction send attempts dispatched to a submission endpoint.",
}, []string{"endpoint"})

// SendsDropped counts work items removed from the FastSender queue after
// exhausting max_sends, whether or not they landed on chain.
var SendsDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "evorebot",
	Name:      "sends_dropped_total",
	Help:      "Total submission work items dropped after exhausting max_sends.",
})

// ConfirmationsTimedOut counts TxPipeline entries evicted by the 30s
// confirmation timeout rather than a real chain status.
var ConfirmationsTimedOut = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "evorebot",
	Name:      "confirmations_timed_out_total",
	Help:      "Total pending confirmations evicted by timeout.",
})

func init() {
	prometheus.MustRegister(SlotUpdates, SendsDispatched, SendsDropped, ConfirmationsTimedOut)
}
