package core

import (
	"context"
	"errors"
	"testing"

	"flowcore/pkg/domain"
)

func newRuleStore() *MemoryStore {
	return NewMemoryStore(NewDefaultRulesEngine(DefaultWorkflows()...))
}

func TestStateMachineRuleBlocksUndeclaredState(t *testing.T) {
	store := newRuleStore()
	ctx := context.Background()

	var bookID string
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		book, err := tx.CreateBook(domain.Book{Title: "T"})
		if err != nil {
			return err
		}
		bookID = book.ID
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.UpdateBook(bookID, func(b *domain.Book) error {
			b.State = "SHREDDED"
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation for undeclared state, got %v", err)
	}

	// The write never became visible.
	if err := store.View(ctx, func(view domain.RuleView) error {
		book, _ := view.FindBook(bookID)
		if book.State != domain.BookAvailable {
			t.Fatalf("expected AVAILABLE preserved, got %s", book.State)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestStateMachineRuleBlocksTerminalEscape(t *testing.T) {
	store := newRuleStore()
	ctx := context.Background()

	var appID string
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		app, err := tx.CreateApplication(domain.Application{Program: "Math", State: domain.ApplicationApproved})
		if err != nil {
			return err
		}
		appID = app.ID
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.UpdateApplication(appID, func(a *domain.Application) error {
			a.State = domain.ApplicationPending
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation moving out of APPROVED, got %v", err)
	}
}

func TestOpenRecordRuleBlocksSecondOpenLoan(t *testing.T) {
	store := newRuleStore()
	ctx := context.Background()

	var bookID string
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		book, err := tx.CreateBook(domain.Book{Title: "T"})
		if err != nil {
			return err
		}
		bookID = book.ID
		_, err = tx.CreateLoan(domain.Loan{BookID: bookID, MemberID: "m1"})
		return err
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.CreateLoan(domain.Loan{BookID: bookID, MemberID: "m2"})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation on second open loan, got %v", err)
	}
}

func TestFrozenPriceRuleBlocksCartPriceRewrite(t *testing.T) {
	store := newRuleStore()
	ctx := context.Background()

	var cartID string
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		cart, err := tx.CreateCart(domain.Cart{
			ActorID: "a1",
			Items:   []domain.CartItem{{ProductID: "p1", Quantity: 2, UnitPrice: 10}},
			Total:   20,
		})
		if err != nil {
			return err
		}
		cartID = cart.ID
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.UpdateCart(cartID, func(c *domain.Cart) error {
			c.Items[0].UnitPrice = 1
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation rewriting cart unit price, got %v", err)
	}

	// Appending a new line is allowed.
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.UpdateCart(cartID, func(c *domain.Cart) error {
			c.Items = append(c.Items, domain.CartItem{ProductID: "p2", Quantity: 1, UnitPrice: 5})
			c.Total = CartTotal(c.Items)
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("append line: %v", err)
	}
}

func TestFrozenPriceRuleBlocksOrderItemRewrite(t *testing.T) {
	store := newRuleStore()
	ctx := context.Background()

	var orderID string
	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		order, err := tx.CreateOrder(domain.Order{
			ActorID:     "a1",
			Items:       []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 30}},
			Total:       30,
			FinalAmount: 30,
		})
		if err != nil {
			return err
		}
		orderID = order.ID
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.UpdateOrder(orderID, func(o *domain.Order) error {
			o.Items[0].Quantity = 10
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation rewriting order items, got %v", err)
	}
}
