package domain

import "context"

// RuleView provides read-only access to domain entities for rule and guard
// evaluation. Implementations return defensive copies.
type RuleView interface {
	ListBooks() []Book
	ListActors() []Actor
	ListLoans() []Loan
	ListProducts() []Product
	ListCarts() []Cart
	ListOrders() []Order
	ListPayments() []Payment
	ListDeliveries() []Delivery
	ListApplications() []Application
	ListDocuments() []Document
	FindBook(id string) (Book, bool)
	FindActor(id string) (Actor, bool)
	FindLoan(id string) (Loan, bool)
	FindProduct(id string) (Product, bool)
	FindCart(id string) (Cart, bool)
	FindCartByActor(actorID string) (Cart, bool)
	FindOrder(id string) (Order, bool)
	FindPayment(id string) (Payment, bool)
	FindDelivery(id string) (Delivery, bool)
	FindApplication(id string) (Application, bool)
	FindDocument(id string) (Document, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in registration order.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
