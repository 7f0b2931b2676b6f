package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flowcore/pkg/domain"
)

// Outcome reports the result of one executed transition: the resource that
// moved, its new state, and the transaction records the transition created or
// resolved.
type Outcome struct {
	Key     domain.ResourceKey
	State   domain.State
	Records []any
	Result  domain.Result
}

// Engine validates and applies workflow transitions. Workflows are pure data;
// the engine owns the mechanics: capability check, per-resource exclusion,
// precondition evaluation, state change, cascade application, atomic commit.
type Engine struct {
	store       domain.PersistentStore
	authz       domain.Authorizer
	coordinator *Coordinator
	workflows   map[string]domain.Workflow
	logger      *slog.Logger
	clock       func() time.Time
}

// NewEngine constructs a transition engine over the given store and
// authorizer. A nil logger discards engine logging.
func NewEngine(store domain.PersistentStore, authz domain.Authorizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:       store,
		authz:       authz,
		coordinator: NewCoordinator(),
		workflows:   make(map[string]domain.Workflow),
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a workflow definition. Registering a second workflow with the
// same name is a configuration error.
func (e *Engine) Register(wf domain.Workflow) error {
	if wf.Name == "" {
		return fmt.Errorf("workflow name required")
	}
	if _, exists := e.workflows[wf.Name]; exists {
		return fmt.Errorf("workflow %q already registered", wf.Name)
	}
	e.workflows[wf.Name] = wf
	return nil
}

// Workflow returns a registered workflow definition by name.
func (e *Engine) Workflow(name string) (domain.Workflow, bool) {
	wf, ok := e.workflows[name]
	return wf, ok
}

// Workflows returns all registered workflow definitions.
func (e *Engine) Workflows() []domain.Workflow {
	out := make([]domain.Workflow, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, wf)
	}
	return out
}

// Execute runs one transition command. The whole load-guard-mutate-commit
// sequence executes under the resource's exclusion scope; once the apply step
// begins it runs to completion or rolls back entirely.
func (e *Engine) Execute(ctx context.Context, cmd domain.Command) (Outcome, error) {
	wf, ok := e.workflows[cmd.Workflow]
	if !ok {
		return Outcome{}, fmt.Errorf("workflow %q not registered", cmd.Workflow)
	}
	key := domain.ResourceKey{Entity: wf.Resource, ID: cmd.ResourceID}

	var outcome Outcome
	result, err := e.store.RunInTransaction(ctx, []domain.ResourceKey{key}, func(tx domain.Transaction) error {
		state, ok := tx.ResourceState(key)
		if !ok {
			return domain.NotFoundError{Entity: wf.Resource, ID: cmd.ResourceID}
		}
		spec, ok := wf.Spec(cmd.Transition)
		if !ok || !wf.AllowsFrom(spec, state) {
			return domain.InvalidTransitionError{Workflow: wf.Name, Transition: cmd.Transition, State: state}
		}

		view := tx.Snapshot()
		if spec.Capability != "" && e.authz != nil {
			actor, ok := view.FindActor(cmd.ActorID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityActor, ID: cmd.ActorID}
			}
			if !e.authz.Allow(actor, spec.Capability) {
				return domain.ForbiddenError{ActorID: cmd.ActorID, Capability: string(spec.Capability)}
			}
		}

		if spec.Guard != nil {
			if err := spec.Guard(view, cmd); err != nil {
				return err
			}
		}

		now := e.clock()
		if t, ok := tx.(interface{ Now() time.Time }); ok {
			now = t.Now()
		}
		var cascades []domain.Cascade
		if spec.Cascades != nil {
			var err error
			cascades, err = spec.Cascades(view, cmd, now)
			if err != nil {
				return err
			}
		}

		if err := tx.SetResourceState(key, spec.Next); err != nil {
			return err
		}
		records, err := e.coordinator.Apply(tx, cascades)
		if err != nil {
			return err
		}
		outcome = Outcome{Key: key, State: spec.Next, Records: records}
		return nil
	})
	if err != nil {
		e.logger.Warn("transition rejected",
			"workflow", cmd.Workflow,
			"transition", cmd.Transition,
			"resource", cmd.ResourceID,
			"error", err)
		return Outcome{}, err
	}
	outcome.Result = result
	e.logger.Info("transition applied",
		"workflow", cmd.Workflow,
		"transition", cmd.Transition,
		"resource", cmd.ResourceID,
		"state", string(outcome.State))
	return outcome, nil
}
