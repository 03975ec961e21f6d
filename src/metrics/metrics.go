package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchMovements counts ledger entries by destination state.
	BatchMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_batch_movements_total",
		Help: "Batch movement ledger entries written, by destination state.",
	}, []string{"to_state"})

	// JobWorksCreated counts job work orders by kind.
	JobWorksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_job_works_created_total",
		Help: "Job work orders created, by kind.",
	}, []string{"kind"})

	// TransitionFailures counts rejected state transitions by error class.
	TransitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_transition_failures_total",
		Help: "State transitions rejected by validation, by error class.",
	}, []string{"reason"})
)
