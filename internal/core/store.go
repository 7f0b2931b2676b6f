package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"flowcore/pkg/domain"

	"github.com/google/uuid"
)

type memoryState struct {
	books        map[string]domain.Book
	actors       map[string]domain.Actor
	loans        map[string]domain.Loan
	products     map[string]domain.Product
	carts        map[string]domain.Cart
	orders       map[string]domain.Order
	payments     map[string]domain.Payment
	deliveries   map[string]domain.Delivery
	applications map[string]domain.Application
	documents    map[string]domain.Document
}

func newMemoryState() memoryState {
	return memoryState{
		books:        make(map[string]domain.Book),
		actors:       make(map[string]domain.Actor),
		loans:        make(map[string]domain.Loan),
		products:     make(map[string]domain.Product),
		carts:        make(map[string]domain.Cart),
		orders:       make(map[string]domain.Order),
		payments:     make(map[string]domain.Payment),
		deliveries:   make(map[string]domain.Delivery),
		applications: make(map[string]domain.Application),
		documents:    make(map[string]domain.Document),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.books {
		cloned.books[k] = v
	}
	for k, v := range s.actors {
		cloned.actors[k] = v
	}
	for k, v := range s.loans {
		cloned.loans[k] = v
	}
	for k, v := range s.products {
		cloned.products[k] = v
	}
	for k, v := range s.carts {
		cloned.carts[k] = cloneCart(v)
	}
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.payments {
		cloned.payments[k] = clonePayment(v)
	}
	for k, v := range s.deliveries {
		cloned.deliveries[k] = v
	}
	for k, v := range s.applications {
		cloned.applications[k] = v
	}
	for k, v := range s.documents {
		cloned.documents[k] = v
	}
	return cloned
}

func cloneCart(c domain.Cart) domain.Cart {
	cp := c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return cp
}

func cloneOrder(o domain.Order) domain.Order {
	cp := o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return cp
}

func clonePayment(p domain.Payment) domain.Payment {
	cp := p
	if p.OrderID != nil {
		id := *p.OrderID
		cp.OrderID = &id
	}
	if p.ApplicationID != nil {
		id := *p.ApplicationID
		cp.ApplicationID = &id
	}
	return cp
}

func cloneLoan(l domain.Loan) domain.Loan {
	cp := l
	if l.ReturnDate != nil {
		d := *l.ReturnDate
		cp.ReturnDate = &d
	}
	return cp
}

// defaultLockTimeout bounds lock acquisition when the caller's context carries
// no deadline of its own.
const defaultLockTimeout = 3 * time.Second

// lockTable hands out one exclusion slot per resource key. Acquisition honors
// the context deadline so contended transitions fail with Busy instead of
// queueing forever.
type lockTable struct {
	mu    sync.Mutex
	slots map[domain.ResourceKey]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[domain.ResourceKey]chan struct{})}
}

func (lt *lockTable) slot(key domain.ResourceKey) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	ch, ok := lt.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lt.slots[key] = ch
	}
	return ch
}

// acquire locks every key in deterministic order. On failure it releases what
// it already holds and reports the full scope as busy.
func (lt *lockTable) acquire(ctx context.Context, keys []domain.ResourceKey) (func(), error) {
	ordered := append([]domain.ResourceKey(nil), keys...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Entity != ordered[j].Entity {
			return ordered[i].Entity < ordered[j].Entity
		}
		return ordered[i].ID < ordered[j].ID
	})
	// Drop duplicate keys so a scope naming the same resource twice cannot
	// self-deadlock.
	deduped := ordered[:0]
	for i, k := range ordered {
		if i > 0 && k == ordered[i-1] {
			continue
		}
		deduped = append(deduped, k)
	}

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, key := range deduped {
		ch := lt.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, domain.BusyError{Scope: keys}
		}
	}
	return release, nil
}

// MemoryStore provides an in-memory transactional store for the core domain.
// Each transaction stages mutations against a cloned snapshot and merges its
// change set into live state at commit, after rule evaluation passes.
type MemoryStore struct {
	mu          sync.RWMutex
	state       memoryState
	engine      *domain.RulesEngine
	locks       *lockTable
	lockTimeout time.Duration
	nowFn       func() time.Time
}

// compile-time contract assertion
var _ domain.PersistentStore = (*MemoryStore)(nil)

// NewMemoryStore constructs an in-memory store backed by the provided rules
// engine. A nil engine yields a store that commits without rule evaluation.
func NewMemoryStore(engine *domain.RulesEngine) *MemoryStore {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &MemoryStore{
		state:       newMemoryState(),
		engine:      engine,
		locks:       newLockTable(),
		lockTimeout: defaultLockTimeout,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// RulesEngine exposes the configured engine so workflows can register rules.
func (s *MemoryStore) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the store clock. Intended for tests.
func (s *MemoryStore) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// SetLockTimeout overrides the default exclusion timeout.
func (s *MemoryStore) SetLockTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockTimeout = d
}

func (s *MemoryStore) newID() string {
	return uuid.NewString()
}

// Transaction represents a mutation set staged against the store state.
type Transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// RunInTransaction executes fn within a transactional snapshot of the store.
// The scope names every resource the transaction may touch: conflicting
// scopes serialize on the lock table, and acquisition past the deadline fails
// with Busy. Once fn returns the commit runs without further cancellation
// checks, so partial application is never observable.
func (s *MemoryStore) RunInTransaction(ctx context.Context, scope []domain.ResourceKey, fn func(domain.Transaction) error) (domain.Result, error) {
	if len(scope) > 0 {
		s.mu.RLock()
		timeout := s.lockTimeout
		s.mu.RUnlock()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		release, err := s.locks.acquire(ctx, scope)
		if err != nil {
			return domain.Result{}, err
		}
		defer release()
	}

	s.mu.RLock()
	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.mu.Lock()
	for _, change := range tx.changes {
		applyChange(&s.state, change)
	}
	s.mu.Unlock()
	return result, nil
}

// View executes fn against a read-only snapshot of the store state. Repeated
// views between commits observe identical state.
func (s *MemoryStore) View(_ context.Context, fn func(domain.RuleView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// applyChange merges one staged change into live state. The caller holds the
// store mutex.
func applyChange(state *memoryState, change domain.Change) {
	if change.Action == domain.ActionDelete {
		switch before := change.Before.(type) {
		case domain.Book:
			delete(state.books, before.ID)
		case domain.Actor:
			delete(state.actors, before.ID)
		case domain.Product:
			delete(state.products, before.ID)
		case domain.Cart:
			delete(state.carts, before.ID)
		case domain.Order:
			delete(state.orders, before.ID)
		case domain.Application:
			delete(state.applications, before.ID)
		}
		return
	}
	switch after := change.After.(type) {
	case domain.Book:
		state.books[after.ID] = after
	case domain.Actor:
		state.actors[after.ID] = after
	case domain.Loan:
		state.loans[after.ID] = cloneLoan(after)
	case domain.Product:
		state.products[after.ID] = after
	case domain.Cart:
		state.carts[after.ID] = cloneCart(after)
	case domain.Order:
		state.orders[after.ID] = cloneOrder(after)
	case domain.Payment:
		state.payments[after.ID] = clonePayment(after)
	case domain.Delivery:
		state.deliveries[after.ID] = after
	case domain.Application:
		state.applications[after.ID] = after
	case domain.Document:
		state.documents[after.ID] = after
	}
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the staged state for guard evaluation.
func (tx *Transaction) Snapshot() domain.RuleView {
	return newTransactionView(&tx.state)
}

// Now returns the transaction timestamp. All records created in one
// transaction share it.
func (tx *Transaction) Now() time.Time { return tx.now }

// CreateBook stores a new book within the transaction.
func (tx *Transaction) CreateBook(b domain.Book) (domain.Book, error) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.books[b.ID]; exists {
		return domain.Book{}, fmt.Errorf("book %q already exists", b.ID)
	}
	if b.State == "" {
		b.State = domain.BookAvailable
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.books[b.ID] = b
	tx.recordChange(domain.Change{Entity: domain.EntityBook, Action: domain.ActionCreate, After: b})
	return b, nil
}

// UpdateBook mutates a book using the provided mutator function.
func (tx *Transaction) UpdateBook(id string, mutator func(*domain.Book) error) (domain.Book, error) {
	current, ok := tx.state.books[id]
	if !ok {
		return domain.Book{}, domain.NotFoundError{Entity: domain.EntityBook, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Book{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.books[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityBook, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteBook removes a book. It fails with Conflict while an open loan still
// references the book.
func (tx *Transaction) DeleteBook(id string) error {
	current, ok := tx.state.books[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityBook, ID: id}
	}
	for _, loan := range tx.state.loans {
		if loan.BookID == id && loan.Open() {
			return domain.ConflictError{Entity: domain.EntityBook, ID: id, Detail: "open loan " + loan.ID}
		}
	}
	delete(tx.state.books, id)
	tx.recordChange(domain.Change{Entity: domain.EntityBook, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateActor stores a new actor.
func (tx *Transaction) CreateActor(a domain.Actor) (domain.Actor, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.actors[a.ID]; exists {
		return domain.Actor{}, fmt.Errorf("actor %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.actors[a.ID] = a
	tx.recordChange(domain.Change{Entity: domain.EntityActor, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateActor mutates an existing actor.
func (tx *Transaction) UpdateActor(id string, mutator func(*domain.Actor) error) (domain.Actor, error) {
	current, ok := tx.state.actors[id]
	if !ok {
		return domain.Actor{}, domain.NotFoundError{Entity: domain.EntityActor, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Actor{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.actors[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityActor, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteActor removes an actor from state.
func (tx *Transaction) DeleteActor(id string) error {
	current, ok := tx.state.actors[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityActor, ID: id}
	}
	delete(tx.state.actors, id)
	tx.recordChange(domain.Change{Entity: domain.EntityActor, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateLoan opens a borrow transaction record.
func (tx *Transaction) CreateLoan(l domain.Loan) (domain.Loan, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.loans[l.ID]; exists {
		return domain.Loan{}, fmt.Errorf("loan %q already exists", l.ID)
	}
	if l.Status == "" {
		l.Status = domain.LoanOpen
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.loans[l.ID] = cloneLoan(l)
	tx.recordChange(domain.Change{Entity: domain.EntityLoan, Action: domain.ActionCreate, After: cloneLoan(l)})
	return l, nil
}

// UpdateLoan mutates a loan record. Loans are never deleted; resolution is the
// only legal mutation.
func (tx *Transaction) UpdateLoan(id string, mutator func(*domain.Loan) error) (domain.Loan, error) {
	current, ok := tx.state.loans[id]
	if !ok {
		return domain.Loan{}, domain.NotFoundError{Entity: domain.EntityLoan, ID: id}
	}
	before := cloneLoan(current)
	if err := mutator(&current); err != nil {
		return domain.Loan{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.loans[id] = cloneLoan(current)
	tx.recordChange(domain.Change{Entity: domain.EntityLoan, Action: domain.ActionUpdate, Before: before, After: cloneLoan(current)})
	return current, nil
}

// CreateProduct stores a catalog product.
func (tx *Transaction) CreateProduct(p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return domain.Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = p
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdateProduct mutates a product.
func (tx *Transaction) UpdateProduct(id string, mutator func(*domain.Product) error) (domain.Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.Product{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Product{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.products[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteProduct removes a product from the catalog.
func (tx *Transaction) DeleteProduct(id string) error {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	delete(tx.state.products, id)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateCart stores a new cart.
func (tx *Transaction) CreateCart(c domain.Cart) (domain.Cart, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.carts[c.ID]; exists {
		return domain.Cart{}, fmt.Errorf("cart %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.carts[c.ID] = cloneCart(c)
	tx.recordChange(domain.Change{Entity: domain.EntityCart, Action: domain.ActionCreate, After: cloneCart(c)})
	return c, nil
}

// UpdateCart mutates a cart.
func (tx *Transaction) UpdateCart(id string, mutator func(*domain.Cart) error) (domain.Cart, error) {
	current, ok := tx.state.carts[id]
	if !ok {
		return domain.Cart{}, domain.NotFoundError{Entity: domain.EntityCart, ID: id}
	}
	before := cloneCart(current)
	if err := mutator(&current); err != nil {
		return domain.Cart{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.carts[id] = cloneCart(current)
	tx.recordChange(domain.Change{Entity: domain.EntityCart, Action: domain.ActionUpdate, Before: before, After: cloneCart(current)})
	return current, nil
}

// DeleteCart removes a cart, typically after order placement.
func (tx *Transaction) DeleteCart(id string) error {
	current, ok := tx.state.carts[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCart, ID: id}
	}
	delete(tx.state.carts, id)
	tx.recordChange(domain.Change{Entity: domain.EntityCart, Action: domain.ActionDelete, Before: cloneCart(current)})
	return nil
}

// CreateOrder stores a new order.
func (tx *Transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return domain.Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if o.State == "" {
		o.State = domain.OrderPlaced
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = tx.now
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return o, nil
}

// UpdateOrder mutates an order.
func (tx *Transaction) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return current, nil
}

// DeleteOrder removes an order. It fails with Conflict while an unresolved
// payment or delivery references it.
func (tx *Transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	for _, p := range tx.state.payments {
		if p.OrderID != nil && *p.OrderID == id && p.Status == domain.PaymentPending {
			return domain.ConflictError{Entity: domain.EntityOrder, ID: id, Detail: "pending payment " + p.ID}
		}
	}
	for _, d := range tx.state.deliveries {
		if d.OrderID == id && d.Status == domain.DeliveryAssigned {
			return domain.ConflictError{Entity: domain.EntityOrder, ID: id, Detail: "open delivery " + d.ID}
		}
	}
	delete(tx.state.orders, id)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// CreatePayment records a payment.
func (tx *Transaction) CreatePayment(p domain.Payment) (domain.Payment, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.payments[p.ID]; exists {
		return domain.Payment{}, fmt.Errorf("payment %q already exists", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	if p.PaidAt.IsZero() {
		p.PaidAt = tx.now
	}
	tx.state.payments[p.ID] = clonePayment(p)
	tx.recordChange(domain.Change{Entity: domain.EntityPayment, Action: domain.ActionCreate, After: clonePayment(p)})
	return p, nil
}

// UpdatePayment mutates a payment record, e.g. resolving its status.
func (tx *Transaction) UpdatePayment(id string, mutator func(*domain.Payment) error) (domain.Payment, error) {
	current, ok := tx.state.payments[id]
	if !ok {
		return domain.Payment{}, domain.NotFoundError{Entity: domain.EntityPayment, ID: id}
	}
	before := clonePayment(current)
	if err := mutator(&current); err != nil {
		return domain.Payment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.payments[id] = clonePayment(current)
	tx.recordChange(domain.Change{Entity: domain.EntityPayment, Action: domain.ActionUpdate, Before: before, After: clonePayment(current)})
	return current, nil
}

// CreateDelivery records a delivery assignment.
func (tx *Transaction) CreateDelivery(d domain.Delivery) (domain.Delivery, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.deliveries[d.ID]; exists {
		return domain.Delivery{}, fmt.Errorf("delivery %q already exists", d.ID)
	}
	if d.Status == "" {
		d.Status = domain.DeliveryAssigned
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	if d.AssignedAt.IsZero() {
		d.AssignedAt = tx.now
	}
	tx.state.deliveries[d.ID] = d
	tx.recordChange(domain.Change{Entity: domain.EntityDelivery, Action: domain.ActionCreate, After: d})
	return d, nil
}

// UpdateDelivery mutates a delivery record.
func (tx *Transaction) UpdateDelivery(id string, mutator func(*domain.Delivery) error) (domain.Delivery, error) {
	current, ok := tx.state.deliveries[id]
	if !ok {
		return domain.Delivery{}, domain.NotFoundError{Entity: domain.EntityDelivery, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Delivery{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.deliveries[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityDelivery, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateApplication stores a new admission application in its initial state.
func (tx *Transaction) CreateApplication(a domain.Application) (domain.Application, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.applications[a.ID]; exists {
		return domain.Application{}, fmt.Errorf("application %q already exists", a.ID)
	}
	if a.State == "" {
		a.State = domain.ApplicationPending
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.applications[a.ID] = a
	tx.recordChange(domain.Change{Entity: domain.EntityApplication, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateApplication mutates an application.
func (tx *Transaction) UpdateApplication(id string, mutator func(*domain.Application) error) (domain.Application, error) {
	current, ok := tx.state.applications[id]
	if !ok {
		return domain.Application{}, domain.NotFoundError{Entity: domain.EntityApplication, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Application{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.applications[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityApplication, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteApplication removes an application. It fails with Conflict while a
// pending payment references it.
func (tx *Transaction) DeleteApplication(id string) error {
	current, ok := tx.state.applications[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityApplication, ID: id}
	}
	for _, p := range tx.state.payments {
		if p.ApplicationID != nil && *p.ApplicationID == id && p.Status == domain.PaymentPending {
			return domain.ConflictError{Entity: domain.EntityApplication, ID: id, Detail: "pending payment " + p.ID}
		}
	}
	delete(tx.state.applications, id)
	tx.recordChange(domain.Change{Entity: domain.EntityApplication, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateDocument records an uploaded document.
func (tx *Transaction) CreateDocument(d domain.Document) (domain.Document, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.documents[d.ID]; exists {
		return domain.Document{}, fmt.Errorf("document %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	if d.UploadedAt.IsZero() {
		d.UploadedAt = tx.now
	}
	tx.state.documents[d.ID] = d
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionCreate, After: d})
	return d, nil
}

// ResourceState reads the workflow state of a stateful resource.
func (tx *Transaction) ResourceState(key domain.ResourceKey) (domain.State, bool) {
	switch key.Entity {
	case domain.EntityBook:
		if b, ok := tx.state.books[key.ID]; ok {
			return b.State, true
		}
	case domain.EntityOrder:
		if o, ok := tx.state.orders[key.ID]; ok {
			return o.State, true
		}
	case domain.EntityApplication:
		if a, ok := tx.state.applications[key.ID]; ok {
			return a.State, true
		}
	}
	return "", false
}

// SetResourceState moves a stateful resource to a new state.
func (tx *Transaction) SetResourceState(key domain.ResourceKey, state domain.State) error {
	switch key.Entity {
	case domain.EntityBook:
		_, err := tx.UpdateBook(key.ID, func(b *domain.Book) error {
			b.State = state
			return nil
		})
		return err
	case domain.EntityOrder:
		_, err := tx.UpdateOrder(key.ID, func(o *domain.Order) error {
			o.State = state
			return nil
		})
		return err
	case domain.EntityApplication:
		_, err := tx.UpdateApplication(key.ID, func(a *domain.Application) error {
			a.State = state
			return nil
		})
		return err
	}
	return fmt.Errorf("entity %s is not a stateful resource", key.Entity)
}
