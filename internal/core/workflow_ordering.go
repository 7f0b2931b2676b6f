package core

import (
	"time"

	"flowcore/pkg/domain"
)

// WorkflowOrdering is the name of the grocery ordering workflow.
const WorkflowOrdering = "ordering"

// Ordering transition names.
const (
	TransitionPay            = "pay"
	TransitionAssignDelivery = "assignDelivery"
)

// OrderingWorkflow declares the pay/assignDelivery state machine over orders.
//
// The source allowed assignDelivery from any order state; the table encodes
// the CONFIRMED guard instead, surfacing NOT_CONFIRMED as a precondition
// failure.
func OrderingWorkflow() domain.Workflow {
	return domain.Workflow{
		Name:     WorkflowOrdering,
		Resource: domain.EntityOrder,
		States:   []domain.State{domain.OrderPlaced, domain.OrderConfirmed, domain.OrderOutForDelivery},
		Initial:  domain.OrderPlaced,
		Transitions: []domain.TransitionSpec{
			{
				Name: TransitionPay,
				Next: domain.OrderConfirmed,
				Guard: func(view domain.RuleView, cmd domain.Command) error {
					if _, ok := view.FindOrder(cmd.ResourceID); !ok {
						return domain.NotFoundError{Entity: domain.EntityOrder, ID: cmd.ResourceID}
					}
					for _, p := range view.ListPayments() {
						if p.OrderID != nil && *p.OrderID == cmd.ResourceID && p.Status == domain.PaymentSuccess {
							return domain.PreconditionFailedError{Reason: domain.ReasonAlreadyPaid, Detail: "payment " + p.ID}
						}
					}
					return nil
				},
				Cascades: func(view domain.RuleView, cmd domain.Command, now time.Time) ([]domain.Cascade, error) {
					order, ok := view.FindOrder(cmd.ResourceID)
					if !ok {
						return nil, domain.NotFoundError{Entity: domain.EntityOrder, ID: cmd.ResourceID}
					}
					orderID := order.ID
					payment := domain.Payment{
						OrderID: &orderID,
						Amount:  order.FinalAmount,
						Method:  cmd.Payload.Method,
						Status:  domain.PaymentSuccess,
						PaidAt:  now,
					}
					return []domain.Cascade{{Op: domain.CascadeCreatePayment, Payment: &payment}}, nil
				},
			},
			{
				Name:       TransitionAssignDelivery,
				Next:       domain.OrderOutForDelivery,
				Capability: domain.CapAssignDelivery,
				Guard: func(view domain.RuleView, cmd domain.Command) error {
					order, ok := view.FindOrder(cmd.ResourceID)
					if !ok {
						return domain.NotFoundError{Entity: domain.EntityOrder, ID: cmd.ResourceID}
					}
					if order.State != domain.OrderConfirmed {
						return domain.PreconditionFailedError{Reason: domain.ReasonNotConfirmed, Detail: "order " + order.ID + " is " + string(order.State)}
					}
					return nil
				},
				Cascades: func(_ domain.RuleView, cmd domain.Command, now time.Time) ([]domain.Cascade, error) {
					delivery := domain.Delivery{
						OrderID:    cmd.ResourceID,
						AssignedTo: cmd.Payload.AssignTo,
						Status:     domain.DeliveryAssigned,
						AssignedAt: now,
					}
					return []domain.Cascade{{Op: domain.CascadeCreateDelivery, Delivery: &delivery}}, nil
				},
			},
		},
	}
}
