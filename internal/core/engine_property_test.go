package core

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"flowcore/pkg/domain"
)

// TestAdmissionsTransitionsRespectStateMachine drives the admissions workflow
// with random transition sequences and checks the engine against a model of
// the declared state table: the stored state never leaves the declared set,
// terminal states admit nothing, and every accepted transition matches the
// table.
func TestAdmissionsTransitionsRespectStateMachine(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		wf := AdmissionsWorkflow()
		store := newRuleStore()
		engine := NewEngine(store, AllowAll{}, nil)
		if err := engine.Register(wf); err != nil {
			rt.Fatal(err)
		}
		ctx := context.Background()

		var actorID, appID string
		if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			actor, err := tx.CreateActor(domain.Actor{Name: "Rev", Role: domain.RoleStaff})
			if err != nil {
				return err
			}
			actorID = actor.ID
			app, err := tx.CreateApplication(domain.Application{StudentID: "s1", Program: "CS"})
			if err != nil {
				return err
			}
			appID = app.ID
			return nil
		}); err != nil {
			rt.Fatal(err)
		}

		transitions := []string{TransitionPaymentSucceeded, TransitionStartReview, TransitionApprove, TransitionReject}
		statuses := []domain.PaymentStatus{domain.PaymentSuccess, domain.PaymentFailed, domain.PaymentPending}

		state := wf.Initial
		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom(transitions).Draw(rt, "transition")
			status := rapid.SampledFrom(statuses).Draw(rt, "status")

			spec, _ := wf.Spec(name)
			wantAllowed := wf.AllowsFrom(spec, state)
			wantReason := name == TransitionPaymentSucceeded && wantAllowed && status != domain.PaymentSuccess

			outcome, err := engine.Execute(ctx, domain.Command{
				Workflow:   WorkflowAdmissions,
				Transition: name,
				ResourceID: appID,
				ActorID:    actorID,
				Payload:    domain.CommandPayload{Amount: 50, Method: "card", PaymentStatus: status},
			})

			switch {
			case !wantAllowed:
				if !domain.IsInvalidTransition(err) {
					rt.Fatalf("%s from %s: want invalid transition, got %v", name, state, err)
				}
			case wantReason:
				if reason, ok := domain.IsPreconditionFailed(err); !ok || reason != domain.ReasonPaymentNotSuccess {
					rt.Fatalf("%s with status %s: want PAYMENT_NOT_SUCCESS, got %v", name, status, err)
				}
			default:
				if err != nil {
					rt.Fatalf("%s from %s: unexpected error %v", name, state, err)
				}
				state = spec.Next
				if outcome.State != state {
					rt.Fatalf("outcome state %s, model %s", outcome.State, state)
				}
			}

			if err := store.View(ctx, func(view domain.RuleView) error {
				app, ok := view.FindApplication(appID)
				if !ok {
					rt.Fatalf("application vanished")
				}
				if app.State != state {
					rt.Fatalf("stored state %s, model %s", app.State, state)
				}
				if !wf.HasState(app.State) {
					rt.Fatalf("stored state %s not declared", app.State)
				}
				return nil
			}); err != nil {
				rt.Fatal(err)
			}
		}
	})
}
