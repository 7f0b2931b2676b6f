package core

import (
	"fmt"

	"flowcore/pkg/domain"
)

// Flat discount applied at order placement when the item total exceeds the
// threshold.
const (
	discountThreshold = 200.0
	discountAmount    = 25.0
)

// Coordinator applies the dependent-entity cascades a transition emits. All
// cascades run inside the transition's transaction, so the primary state
// change and its side effects commit or roll back together.
type Coordinator struct{}

// NewCoordinator constructs a cascade coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Apply executes each cascade instruction in order and returns the
// transaction records it created or resolved.
func (c *Coordinator) Apply(tx domain.Transaction, cascades []domain.Cascade) ([]any, error) {
	var records []any
	for _, cascade := range cascades {
		switch cascade.Op {
		case domain.CascadeSetState:
			if err := tx.SetResourceState(cascade.Target, cascade.State); err != nil {
				return nil, err
			}
		case domain.CascadeCreateLoan:
			if cascade.Loan == nil {
				return nil, fmt.Errorf("create_loan cascade without loan payload")
			}
			loan, err := tx.CreateLoan(*cascade.Loan)
			if err != nil {
				return nil, err
			}
			records = append(records, loan)
		case domain.CascadeResolveLoan:
			if cascade.Loan == nil {
				return nil, fmt.Errorf("resolve_loan cascade without loan payload")
			}
			loan, err := tx.UpdateLoan(cascade.Target.ID, func(l *domain.Loan) error {
				if !l.Open() {
					return domain.ConflictError{Entity: domain.EntityLoan, ID: l.ID, Detail: "already resolved"}
				}
				when := cascade.Loan.ReturnDate
				l.ReturnDate = when
				l.Status = domain.LoanReturned
				return nil
			})
			if err != nil {
				return nil, err
			}
			records = append(records, loan)
		case domain.CascadeCreatePayment:
			if cascade.Payment == nil {
				return nil, fmt.Errorf("create_payment cascade without payment payload")
			}
			payment, err := tx.CreatePayment(*cascade.Payment)
			if err != nil {
				return nil, err
			}
			records = append(records, payment)
		case domain.CascadeCreateDelivery:
			if cascade.Delivery == nil {
				return nil, fmt.Errorf("create_delivery cascade without delivery payload")
			}
			delivery, err := tx.CreateDelivery(*cascade.Delivery)
			if err != nil {
				return nil, err
			}
			records = append(records, delivery)
		default:
			return nil, fmt.Errorf("unknown cascade op %q", cascade.Op)
		}
	}
	return records, nil
}

// OrderTotals computes the item total and the discounted final amount from
// frozen line items.
func OrderTotals(items []domain.OrderItem) (total, final float64) {
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	final = total
	if total > discountThreshold {
		final = total - discountAmount
	}
	return total, final
}

// CartTotal recomputes a cart's running total from its frozen item prices.
func CartTotal(items []domain.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
