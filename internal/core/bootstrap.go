package core

import (
	"fmt"
	"log/slog"

	"flowcore/internal/blob"
	"flowcore/pkg/domain"
)

// DefaultWorkflows returns the built-in workflow tables: lending, ordering,
// and admissions.
func DefaultWorkflows() []domain.Workflow {
	return []domain.Workflow{
		LendingWorkflow(),
		OrderingWorkflow(),
		AdmissionsWorkflow(),
	}
}

// NewDefaultRulesEngine builds a rules engine carrying the built-in commit
// rules for the given workflow tables.
func NewDefaultRulesEngine(workflows ...domain.Workflow) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(StateMachineRule(workflows...))
	engine.Register(OpenRecordRule())
	engine.Register(FrozenPriceRule())
	return engine
}

// NewInMemoryService wires the full default stack over an in-memory store:
// rules engine, workflow tables, transition engine, and service facade. The
// returned store is exposed for snapshot export and test clock control.
func NewInMemoryService(authz domain.Authorizer, blobs blob.Store, logger *slog.Logger, opts ...ServiceOption) (*Service, *MemoryStore, error) {
	workflows := DefaultWorkflows()
	store := NewMemoryStore(NewDefaultRulesEngine(workflows...))
	engine := NewEngine(store, authz, logger)
	for _, wf := range workflows {
		if err := engine.Register(wf); err != nil {
			return nil, nil, fmt.Errorf("register workflow: %w", err)
		}
	}
	svc := NewService(store, engine, authz, blobs, opts...)
	if logger != nil {
		WithLogger(logger)(svc)
	}
	return svc, store, nil
}
