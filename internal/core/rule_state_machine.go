package core

import (
	"context"
	"fmt"

	"flowcore/pkg/domain"
)

// StateMachineRule blocks commits that would leave a stateful resource in an
// undeclared state or move it out of a terminal state. It is the commit-time
// backstop behind the engine's per-transition checks.
func StateMachineRule(workflows ...domain.Workflow) domain.Rule {
	machines := make(map[domain.EntityType]domain.Workflow, len(workflows))
	for _, wf := range workflows {
		machines[wf.Resource] = wf
	}
	return stateMachineRule{machines: machines}
}

type stateMachineRule struct {
	machines map[domain.EntityType]domain.Workflow
}

func (stateMachineRule) Name() string { return "state_machine" }

func (r stateMachineRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		wf, ok := r.machines[change.Entity]
		if !ok {
			continue
		}

		afterID, afterState, ok := resourceState(change.After)
		if ok && !wf.HasState(afterState) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "state_machine",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s is set to undeclared state %s", change.Entity, afterID, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
			continue
		}

		beforeID, beforeState, ok := resourceState(change.Before)
		if !ok || !wf.IsTerminal(beforeState) {
			continue
		}
		if afterState != beforeState {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "state_machine",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s from terminal state %s to %s", change.Entity, beforeID, beforeState, afterState),
				Entity:   change.Entity,
				EntityID: beforeID,
			})
		}
	}
	return res, nil
}

// resourceState extracts the id and workflow state from a change payload.
func resourceState(payload any) (id string, state domain.State, ok bool) {
	switch v := payload.(type) {
	case domain.Book:
		return v.ID, v.State, true
	case domain.Order:
		return v.ID, v.State, true
	case domain.Application:
		return v.ID, v.State, true
	}
	return "", "", false
}
