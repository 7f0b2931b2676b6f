package core

import (
	"context"
	"strings"
	"testing"

	"flowcore/pkg/domain"
)

func TestApplyRejectsMissingRecordPayloads(t *testing.T) {
	store := NewMemoryStore(nil)
	coordinator := NewCoordinator()
	ctx := context.Background()

	cases := []struct {
		name    string
		cascade domain.Cascade
	}{
		{"create_loan", domain.Cascade{Op: domain.CascadeCreateLoan}},
		{"resolve_loan", domain.Cascade{Op: domain.CascadeResolveLoan, Target: domain.ResourceKey{Entity: domain.EntityLoan, ID: "l1"}}},
		{"create_payment", domain.Cascade{Op: domain.CascadeCreatePayment}},
		{"create_delivery", domain.Cascade{Op: domain.CascadeCreateDelivery}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
				_, err := coordinator.Apply(tx, []domain.Cascade{tc.cascade})
				return err
			})
			if err == nil || !strings.Contains(err.Error(), "without") {
				t.Fatalf("expected missing-payload error, got %v", err)
			}
		})
	}
}

func TestApplyRejectsUnknownOp(t *testing.T) {
	store := NewMemoryStore(nil)
	coordinator := NewCoordinator()

	_, err := store.RunInTransaction(context.Background(), nil, func(tx domain.Transaction) error {
		_, err := coordinator.Apply(tx, []domain.Cascade{{Op: "shred"}})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "unknown cascade op") {
		t.Fatalf("expected unknown op error, got %v", err)
	}
}
