package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Mutations stage against a cloned state;
// nothing is visible outside the transaction until commit.
type Transaction interface {
	Snapshot() RuleView

	CreateBook(Book) (Book, error)
	UpdateBook(id string, mutator func(*Book) error) (Book, error)
	DeleteBook(id string) error
	CreateActor(Actor) (Actor, error)
	UpdateActor(id string, mutator func(*Actor) error) (Actor, error)
	DeleteActor(id string) error
	CreateLoan(Loan) (Loan, error)
	UpdateLoan(id string, mutator func(*Loan) error) (Loan, error)
	CreateProduct(Product) (Product, error)
	UpdateProduct(id string, mutator func(*Product) error) (Product, error)
	DeleteProduct(id string) error
	CreateCart(Cart) (Cart, error)
	UpdateCart(id string, mutator func(*Cart) error) (Cart, error)
	DeleteCart(id string) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	CreatePayment(Payment) (Payment, error)
	UpdatePayment(id string, mutator func(*Payment) error) (Payment, error)
	CreateDelivery(Delivery) (Delivery, error)
	UpdateDelivery(id string, mutator func(*Delivery) error) (Delivery, error)
	CreateApplication(Application) (Application, error)
	UpdateApplication(id string, mutator func(*Application) error) (Application, error)
	DeleteApplication(id string) error
	CreateDocument(Document) (Document, error)

	// ResourceState reads the workflow state of a stateful resource.
	ResourceState(key ResourceKey) (State, bool)
	// SetResourceState moves a stateful resource to a new state.
	SetResourceState(key ResourceKey, state State) error
}

// PersistentStore is a minimal abstraction over durable backends. A scope
// lists the resource keys a transaction will touch; the store serializes
// conflicting scopes and fails with BusyError when exclusion cannot be
// acquired before the context deadline.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, scope []ResourceKey, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(RuleView) error) error
}
