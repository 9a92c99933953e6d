// Package metrics defines the Prometheus collectors exported by alignsync.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for alignsync metrics.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Metric names.
const (
	StoreOpsTotalKey   = "alignsync_store_ops_total"
	StoreOpenTotalKey  = "alignsync_store_open_total"
	JournalAppendedKey = "alignsync_journal_appended_total"
	JournalAckedKey    = "alignsync_journal_acknowledged_total"
	RegistryHandlesKey = "alignsync_registry_open_handles"
	SyncStagesTotalKey = "alignsync_sync_stages_total"
	SyncRunsTotalKey   = "alignsync_sync_runs_total"
	RemoteRequestsKey  = "alignsync_remote_requests_total"
	TokensUploadedKey  = "alignsync_tokens_uploaded_total"
)

// Collectors for the link/word store and journal.
var (
	StoreOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: StoreOpsTotalKey,
		Help: "Cumulative number of store operations, by operation and status.",
	}, []string{"op", "status"})
	StoreOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: StoreOpenTotalKey,
		Help: "Cumulative number of project databases opened.",
	}, []string{"status"})
	JournalAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: JournalAppendedKey,
		Help: "Cumulative number of journal entries appended, by operation.",
	}, []string{"operation"})
	JournalAcknowledgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: JournalAckedKey,
		Help: "Cumulative number of journal entries deleted after remote acknowledgement.",
	})
	RegistryOpenHandles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: RegistryHandlesKey,
		Help: "Number of project store handles currently held by the registry.",
	})
)

// StoreCollectors returns the metrics used by the store and registry packages.
func StoreCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		StoreOpsTotal,
		StoreOpenTotal,
		JournalAppendedTotal,
		JournalAcknowledgedTotal,
		RegistryOpenHandles,
	}
}

// Collectors for the sync coordinator and remote client.
var (
	SyncStagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SyncStagesTotalKey,
		Help: "Cumulative number of sync stages executed, by stage and status.",
	}, []string{"stage", "status"})
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SyncRunsTotalKey,
		Help: "Cumulative number of sync runs, by terminal state.",
	}, []string{"outcome"})
	RemoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: RemoteRequestsKey,
		Help: "Cumulative number of remote service requests, by method and status.",
	}, []string{"method", "status"})
	TokensUploadedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: TokensUploadedKey,
		Help: "Cumulative number of tokens uploaded to the remote service.",
	})
)

// SyncCollectors returns the metrics used by the engine and remote packages.
func SyncCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		SyncStagesTotal,
		SyncRunsTotal,
		RemoteRequestsTotal,
		TokensUploadedTotal,
	}
}

// Status maps an error to the Ok/Fail label.
func Status(err error) string {
	if err != nil {
		return Fail
	}
	return Ok
}
