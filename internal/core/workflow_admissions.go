package core

import (
	"time"

	"flowcore/pkg/domain"
)

// WorkflowAdmissions is the name of the college admissions workflow.
const WorkflowAdmissions = "admissions"

// Admissions transition names.
const (
	TransitionPaymentSucceeded = "paymentSucceeded"
	TransitionStartReview      = "startReview"
	TransitionApprove          = "approve"
	TransitionReject           = "reject"
)

// AdmissionsWorkflow declares the admission application state machine.
// Approved and rejected are terminal: every transition attempted from them
// fails as undeclared.
func AdmissionsWorkflow() domain.Workflow {
	return domain.Workflow{
		Name:     WorkflowAdmissions,
		Resource: domain.EntityApplication,
		States: []domain.State{
			domain.ApplicationPending,
			domain.ApplicationSubmitted,
			domain.ApplicationUnderReview,
			domain.ApplicationApproved,
			domain.ApplicationRejected,
		},
		Initial:  domain.ApplicationPending,
		Terminal: []domain.State{domain.ApplicationApproved, domain.ApplicationRejected},
		Transitions: []domain.TransitionSpec{
			{
				Name: TransitionPaymentSucceeded,
				From: []domain.State{domain.ApplicationPending},
				Next: domain.ApplicationSubmitted,
				Guard: func(_ domain.RuleView, cmd domain.Command) error {
					if cmd.Payload.PaymentStatus != domain.PaymentSuccess {
						return domain.PreconditionFailedError{
							Reason: domain.ReasonPaymentNotSuccess,
							Detail: "payment status " + string(cmd.Payload.PaymentStatus),
						}
					}
					return nil
				},
				Cascades: func(_ domain.RuleView, cmd domain.Command, now time.Time) ([]domain.Cascade, error) {
					appID := cmd.ResourceID
					payment := domain.Payment{
						ApplicationID: &appID,
						Amount:        cmd.Payload.Amount,
						Method:        cmd.Payload.Method,
						Status:        domain.PaymentSuccess,
						PaidAt:        now,
					}
					return []domain.Cascade{{Op: domain.CascadeCreatePayment, Payment: &payment}}, nil
				},
			},
			{
				Name:       TransitionStartReview,
				From:       []domain.State{domain.ApplicationSubmitted},
				Next:       domain.ApplicationUnderReview,
				Capability: domain.CapReview,
			},
			{
				Name:       TransitionApprove,
				From:       []domain.State{domain.ApplicationUnderReview},
				Next:       domain.ApplicationApproved,
				Capability: domain.CapReview,
			},
			{
				Name:       TransitionReject,
				From:       []domain.State{domain.ApplicationUnderReview},
				Next:       domain.ApplicationRejected,
				Capability: domain.CapReview,
			},
		},
	}
}
