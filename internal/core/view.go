package core

import "flowcore/pkg/domain"

// transactionView exposes a read-only snapshot of transactional state to
// guards and rules.
type transactionView struct {
	state *memoryState
}

var _ domain.RuleView = transactionView{}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

// ListBooks returns all books within the snapshot.
func (v transactionView) ListBooks() []domain.Book {
	out := make([]domain.Book, 0, len(v.state.books))
	for _, b := range v.state.books {
		out = append(out, b)
	}
	return out
}

// ListActors returns all actors.
func (v transactionView) ListActors() []domain.Actor {
	out := make([]domain.Actor, 0, len(v.state.actors))
	for _, a := range v.state.actors {
		out = append(out, a)
	}
	return out
}

// ListLoans returns all loans.
func (v transactionView) ListLoans() []domain.Loan {
	out := make([]domain.Loan, 0, len(v.state.loans))
	for _, l := range v.state.loans {
		out = append(out, cloneLoan(l))
	}
	return out
}

// ListProducts returns all products.
func (v transactionView) ListProducts() []domain.Product {
	out := make([]domain.Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, p)
	}
	return out
}

// ListCarts returns all carts.
func (v transactionView) ListCarts() []domain.Cart {
	out := make([]domain.Cart, 0, len(v.state.carts))
	for _, c := range v.state.carts {
		out = append(out, cloneCart(c))
	}
	return out
}

// ListOrders returns all orders.
func (v transactionView) ListOrders() []domain.Order {
	out := make([]domain.Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

// ListPayments returns all payments.
func (v transactionView) ListPayments() []domain.Payment {
	out := make([]domain.Payment, 0, len(v.state.payments))
	for _, p := range v.state.payments {
		out = append(out, clonePayment(p))
	}
	return out
}

// ListDeliveries returns all deliveries.
func (v transactionView) ListDeliveries() []domain.Delivery {
	out := make([]domain.Delivery, 0, len(v.state.deliveries))
	for _, d := range v.state.deliveries {
		out = append(out, d)
	}
	return out
}

// ListApplications returns all applications.
func (v transactionView) ListApplications() []domain.Application {
	out := make([]domain.Application, 0, len(v.state.applications))
	for _, a := range v.state.applications {
		out = append(out, a)
	}
	return out
}

// ListDocuments returns all documents.
func (v transactionView) ListDocuments() []domain.Document {
	out := make([]domain.Document, 0, len(v.state.documents))
	for _, d := range v.state.documents {
		out = append(out, d)
	}
	return out
}

// FindBook retrieves a book by ID from the snapshot.
func (v transactionView) FindBook(id string) (domain.Book, bool) {
	b, ok := v.state.books[id]
	return b, ok
}

// FindActor retrieves an actor by ID.
func (v transactionView) FindActor(id string) (domain.Actor, bool) {
	a, ok := v.state.actors[id]
	return a, ok
}

// FindLoan retrieves a loan by ID.
func (v transactionView) FindLoan(id string) (domain.Loan, bool) {
	l, ok := v.state.loans[id]
	if !ok {
		return domain.Loan{}, false
	}
	return cloneLoan(l), true
}

// FindProduct retrieves a product by ID.
func (v transactionView) FindProduct(id string) (domain.Product, bool) {
	p, ok := v.state.products[id]
	return p, ok
}

// FindCart retrieves a cart by ID.
func (v transactionView) FindCart(id string) (domain.Cart, bool) {
	c, ok := v.state.carts[id]
	if !ok {
		return domain.Cart{}, false
	}
	return cloneCart(c), true
}

// FindCartByActor retrieves the cart owned by the given actor, if any.
func (v transactionView) FindCartByActor(actorID string) (domain.Cart, bool) {
	for _, c := range v.state.carts {
		if c.ActorID == actorID {
			return cloneCart(c), true
		}
	}
	return domain.Cart{}, false
}

// FindOrder retrieves an order by ID.
func (v transactionView) FindOrder(id string) (domain.Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

// FindPayment retrieves a payment by ID.
func (v transactionView) FindPayment(id string) (domain.Payment, bool) {
	p, ok := v.state.payments[id]
	if !ok {
		return domain.Payment{}, false
	}
	return clonePayment(p), true
}

// FindDelivery retrieves a delivery by ID.
func (v transactionView) FindDelivery(id string) (domain.Delivery, bool) {
	d, ok := v.state.deliveries[id]
	return d, ok
}

// FindApplication retrieves an application by ID.
func (v transactionView) FindApplication(id string) (domain.Application, bool) {
	a, ok := v.state.applications[id]
	return a, ok
}

// FindDocument retrieves a document by ID.
func (v transactionView) FindDocument(id string) (domain.Document, bool) {
	d, ok := v.state.documents[id]
	return d, ok
}
