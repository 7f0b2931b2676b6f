package core

import (
	"context"
	"fmt"

	"flowcore/pkg/domain"
)

// FrozenPriceRule blocks updates that rewrite the unit price captured on an
// existing cart line or any part of a placed order's item list. Prices are
// snapshotted when the line is created and stay fixed from then on.
func FrozenPriceRule() domain.Rule { return frozenPriceRule{} }

type frozenPriceRule struct{}

func (frozenPriceRule) Name() string { return "frozen_price" }

func (frozenPriceRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionUpdate {
			continue
		}
		switch change.Entity {
		case domain.EntityCart:
			before, okB := change.Before.(domain.Cart)
			after, okA := change.After.(domain.Cart)
			if !okB || !okA {
				continue
			}
			if len(after.Items) < len(before.Items) {
				continue // removing lines is fine
			}
			for i, item := range before.Items {
				kept := after.Items[i]
				if kept.ProductID == item.ProductID && kept.UnitPrice != item.UnitPrice {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:     "frozen_price",
						Severity: domain.SeverityBlock,
						Message:  fmt.Sprintf("cart %s line for product %s changed unit price from %.2f to %.2f", before.ID, item.ProductID, item.UnitPrice, kept.UnitPrice),
						Entity:   domain.EntityCart,
						EntityID: before.ID,
					})
				}
			}
		case domain.EntityOrder:
			before, okB := change.Before.(domain.Order)
			after, okA := change.After.(domain.Order)
			if !okB || !okA {
				continue
			}
			if !sameOrderItems(before.Items, after.Items) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "frozen_price",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("order %s items are frozen after placement", before.ID),
					Entity:   domain.EntityOrder,
					EntityID: before.ID,
				})
			}
		}
	}
	return res, nil
}

func sameOrderItems(a, b []domain.OrderItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
