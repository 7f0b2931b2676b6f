package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"flowcore/internal/blob"
	"flowcore/pkg/domain"

	"github.com/google/uuid"
)

// Service exposes the typed operations the transport layer calls: catalog and
// actor CRUD, cart management, workflow transitions, and document handling.
// Every operation is instrumented and runs inside a store transaction.
type Service struct {
	store   domain.PersistentStore
	engine  *Engine
	authz   domain.Authorizer
	blobs   blob.Store
	metrics MetricsRecorder
	tracer  Tracer
	logger  *slog.Logger
}

// ServiceOption customizes a Service at construction.
type ServiceOption func(*Service)

// WithMetrics wires a metrics recorder into the service.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer wires a tracer into the service.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger wires a structured logger into the service.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs a service over the given store, engine, authorizer,
// and blob backend. Observability collaborators default to no-ops.
func NewService(store domain.PersistentStore, engine *Engine, authz domain.Authorizer, blobs blob.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		engine:  engine,
		authz:   authz,
		blobs:   blobs,
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the transition engine backing the service.
func (s *Service) Engine() *Engine { return s.engine }

// instrument wraps one service operation with tracing, timing, and logging.
func (s *Service) instrument(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	span.End(err)
	if err != nil {
		s.logger.Warn("operation failed", "op", op, "error", err)
	} else {
		s.logger.Debug("operation completed", "op", op)
	}
	return err
}

// authorize resolves the acting actor and checks the capability against the
// configured policy.
func (s *Service) authorize(view domain.RuleView, actorID string, capability domain.Capability) error {
	actor, ok := view.FindActor(actorID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityActor, ID: actorID}
	}
	if s.authz != nil && !s.authz.Allow(actor, capability) {
		return domain.ForbiddenError{ActorID: actorID, Capability: string(capability)}
	}
	return nil
}

// cartScope serializes cart operations per actor. The cart itself may not
// exist yet when the scope is taken, so the lock keys on the actor.
func cartScope(actorID string) []domain.ResourceKey {
	return []domain.ResourceKey{{Entity: domain.EntityCart, ID: actorID}}
}

// --- actors ---

// CreateActor registers an actor. Actor management is deliberately ungated so
// a fresh deployment can bootstrap its first admin.
func (s *Service) CreateActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	var created domain.Actor
	err := s.instrument(ctx, "create_actor", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateActor(actor)
			return err
		})
		return err
	})
	return created, err
}

// UpdateActor mutates an actor record.
func (s *Service) UpdateActor(ctx context.Context, id string, mutator func(*domain.Actor) error) (domain.Actor, error) {
	var updated domain.Actor
	err := s.instrument(ctx, "update_actor", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityActor, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateActor(id, mutator)
			return err
		})
		return err
	})
	return updated, err
}

// DeleteActor removes an actor record.
func (s *Service) DeleteActor(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_actor", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityActor, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			return tx.DeleteActor(id)
		})
		return err
	})
}

// Actor returns one actor by id.
func (s *Service) Actor(ctx context.Context, id string) (domain.Actor, error) {
	var out domain.Actor
	err := s.store.View(ctx, func(view domain.RuleView) error {
		actor, ok := view.FindActor(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityActor, ID: id}
		}
		out = actor
		return nil
	})
	return out, err
}

// Actors lists all actors.
func (s *Service) Actors(ctx context.Context) ([]domain.Actor, error) {
	var out []domain.Actor
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListActors()
		return nil
	})
	return out, err
}

// --- lending ---

// CreateBook adds a book to the catalog. Requires catalog.write.
func (s *Service) CreateBook(ctx context.Context, actorID string, book domain.Book) (domain.Book, error) {
	var created domain.Book
	err := s.instrument(ctx, "create_book", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			var err error
			created, err = tx.CreateBook(book)
			return err
		})
		return err
	})
	return created, err
}

// UpdateBook mutates a book record. Requires catalog.write.
func (s *Service) UpdateBook(ctx context.Context, actorID, id string, mutator func(*domain.Book) error) (domain.Book, error) {
	var updated domain.Book
	err := s.instrument(ctx, "update_book", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityBook, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			var err error
			updated, err = tx.UpdateBook(id, mutator)
			return err
		})
		return err
	})
	return updated, err
}

// DeleteBook removes a book. It fails with Conflict while an open loan still
// references it. Requires catalog.write.
func (s *Service) DeleteBook(ctx context.Context, actorID, id string) error {
	return s.instrument(ctx, "delete_book", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityBook, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			return tx.DeleteBook(id)
		})
		return err
	})
}

// Book returns one book by id.
func (s *Service) Book(ctx context.Context, id string) (domain.Book, error) {
	var out domain.Book
	err := s.store.View(ctx, func(view domain.RuleView) error {
		book, ok := view.FindBook(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityBook, ID: id}
		}
		out = book
		return nil
	})
	return out, err
}

// Books lists the catalog.
func (s *Service) Books(ctx context.Context) ([]domain.Book, error) {
	var out []domain.Book
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListBooks()
		return nil
	})
	return out, err
}

// BorrowBook moves a book to NOT_AVAILABLE and opens a loan for the actor.
func (s *Service) BorrowBook(ctx context.Context, actorID, bookID string) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, "borrow_book", func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.Execute(ctx, domain.Command{
			Workflow:   WorkflowLending,
			Transition: TransitionBorrow,
			ResourceID: bookID,
			ActorID:    actorID,
		})
		return err
	})
	return outcome, err
}

// ReturnBook resolves the book's open loan and makes it available again.
func (s *Service) ReturnBook(ctx context.Context, actorID, bookID string) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, "return_book", func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.Execute(ctx, domain.Command{
			Workflow:   WorkflowLending,
			Transition: TransitionReturn,
			ResourceID: bookID,
			ActorID:    actorID,
		})
		return err
	})
	return outcome, err
}

// Loans lists all loan records.
func (s *Service) Loans(ctx context.Context) ([]domain.Loan, error) {
	var out []domain.Loan
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListLoans()
		return nil
	})
	return out, err
}

// LoansByMember lists the loans held by one member.
func (s *Service) LoansByMember(ctx context.Context, memberID string) ([]domain.Loan, error) {
	var out []domain.Loan
	err := s.store.View(ctx, func(view domain.RuleView) error {
		for _, loan := range view.ListLoans() {
			if loan.MemberID == memberID {
				out = append(out, loan)
			}
		}
		return nil
	})
	return out, err
}

// --- ordering ---

// CreateProduct adds a product to the catalog. Requires catalog.write.
func (s *Service) CreateProduct(ctx context.Context, actorID string, product domain.Product) (domain.Product, error) {
	var created domain.Product
	err := s.instrument(ctx, "create_product", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			var err error
			created, err = tx.CreateProduct(product)
			return err
		})
		return err
	})
	return created, err
}

// UpdateProduct mutates a product. Price changes never touch existing cart
// lines or orders; those carry their own frozen snapshots.
func (s *Service) UpdateProduct(ctx context.Context, actorID, id string, mutator func(*domain.Product) error) (domain.Product, error) {
	var updated domain.Product
	err := s.instrument(ctx, "update_product", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityProduct, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			var err error
			updated, err = tx.UpdateProduct(id, mutator)
			return err
		})
		return err
	})
	return updated, err
}

// DeleteProduct removes a product from the catalog. Requires catalog.write.
func (s *Service) DeleteProduct(ctx context.Context, actorID, id string) error {
	return s.instrument(ctx, "delete_product", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityProduct, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapCatalogWrite); err != nil {
				return err
			}
			return tx.DeleteProduct(id)
		})
		return err
	})
}

// Products lists the catalog.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListProducts()
		return nil
	})
	return out, err
}

// AddCartItem appends a line to the actor's cart, creating the cart on first
// use. The unit price is snapshotted from the product at add time.
func (s *Service) AddCartItem(ctx context.Context, actorID, productID string, quantity int) (domain.Cart, error) {
	var cart domain.Cart
	err := s.instrument(ctx, "add_cart_item", func(ctx context.Context) error {
		if quantity <= 0 {
			return fmt.Errorf("quantity must be positive, got %d", quantity)
		}
		_, err := s.store.RunInTransaction(ctx, cartScope(actorID), func(tx domain.Transaction) error {
			view := tx.Snapshot()
			if err := s.authorize(view, actorID, domain.CapOrder); err != nil {
				return err
			}
			product, ok := view.FindProduct(productID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
			}
			item := domain.CartItem{ProductID: product.ID, Quantity: quantity, UnitPrice: product.Price}

			existing, ok := view.FindCartByActor(actorID)
			if !ok {
				var err error
				cart, err = tx.CreateCart(domain.Cart{
					ActorID: actorID,
					Items:   []domain.CartItem{item},
					Total:   CartTotal([]domain.CartItem{item}),
				})
				return err
			}
			var err error
			cart, err = tx.UpdateCart(existing.ID, func(c *domain.Cart) error {
				c.Items = append(c.Items, item)
				c.Total = CartTotal(c.Items)
				return nil
			})
			return err
		})
		return err
	})
	return cart, err
}

// RemoveCartItem drops every line for the product from the actor's cart.
func (s *Service) RemoveCartItem(ctx context.Context, actorID, productID string) (domain.Cart, error) {
	var cart domain.Cart
	err := s.instrument(ctx, "remove_cart_item", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, cartScope(actorID), func(tx domain.Transaction) error {
			view := tx.Snapshot()
			if err := s.authorize(view, actorID, domain.CapOrder); err != nil {
				return err
			}
			existing, ok := view.FindCartByActor(actorID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityCart, ID: actorID}
			}
			var err error
			cart, err = tx.UpdateCart(existing.ID, func(c *domain.Cart) error {
				kept := c.Items[:0]
				for _, item := range c.Items {
					if item.ProductID != productID {
						kept = append(kept, item)
					}
				}
				c.Items = kept
				c.Total = CartTotal(c.Items)
				return nil
			})
			return err
		})
		return err
	})
	return cart, err
}

// CartForActor returns the actor's cart.
func (s *Service) CartForActor(ctx context.Context, actorID string) (domain.Cart, error) {
	var out domain.Cart
	err := s.store.View(ctx, func(view domain.RuleView) error {
		cart, ok := view.FindCartByActor(actorID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCart, ID: actorID}
		}
		out = cart
		return nil
	})
	return out, err
}

// PlaceOrder converts the actor's cart into a PLACED order, applying the
// order-level discount, and deletes the cart. An empty or missing cart fails
// the CART_EMPTY precondition.
func (s *Service) PlaceOrder(ctx context.Context, actorID string) (domain.Order, error) {
	var order domain.Order
	err := s.instrument(ctx, "place_order", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, cartScope(actorID), func(tx domain.Transaction) error {
			view := tx.Snapshot()
			if err := s.authorize(view, actorID, domain.CapOrder); err != nil {
				return err
			}
			cart, ok := view.FindCartByActor(actorID)
			if !ok || len(cart.Items) == 0 {
				return domain.PreconditionFailedError{Reason: domain.ReasonCartEmpty, Detail: "actor " + actorID}
			}

			items := make([]domain.OrderItem, 0, len(cart.Items))
			for _, line := range cart.Items {
				items = append(items, domain.OrderItem{
					ProductID: line.ProductID,
					Quantity:  line.Quantity,
					UnitPrice: line.UnitPrice,
				})
			}
			total, final := OrderTotals(items)

			var err error
			order, err = tx.CreateOrder(domain.Order{
				ActorID:     actorID,
				Items:       items,
				Total:       total,
				FinalAmount: final,
			})
			if err != nil {
				return err
			}
			return tx.DeleteCart(cart.ID)
		})
		return err
	})
	return order, err
}

// PayOrder records a successful payment for the order's final amount and
// confirms it.
func (s *Service) PayOrder(ctx context.Context, actorID, orderID, method string) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, "pay_order", func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.Execute(ctx, domain.Command{
			Workflow:   WorkflowOrdering,
			Transition: TransitionPay,
			ResourceID: orderID,
			ActorID:    actorID,
			Payload:    domain.CommandPayload{Method: method},
		})
		return err
	})
	return outcome, err
}

// AssignDelivery attaches a delivery record to a CONFIRMED order and moves it
// out for delivery.
func (s *Service) AssignDelivery(ctx context.Context, actorID, orderID, assignTo string) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, "assign_delivery", func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.Execute(ctx, domain.Command{
			Workflow:   WorkflowOrdering,
			Transition: TransitionAssignDelivery,
			ResourceID: orderID,
			ActorID:    actorID,
			Payload:    domain.CommandPayload{AssignTo: assignTo},
		})
		return err
	})
	return outcome, err
}

// DeleteOrder removes an order. Unresolved payments or deliveries block the
// delete with Conflict.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_order", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityOrder, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			return tx.DeleteOrder(id)
		})
		return err
	})
}

// Order returns one order by id.
func (s *Service) Order(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := s.store.View(ctx, func(view domain.RuleView) error {
		order, ok := view.FindOrder(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
		}
		out = order
		return nil
	})
	return out, err
}

// Orders lists all orders.
func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListOrders()
		return nil
	})
	return out, err
}

// OrdersByActor lists the orders placed by one actor.
func (s *Service) OrdersByActor(ctx context.Context, actorID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.store.View(ctx, func(view domain.RuleView) error {
		for _, order := range view.ListOrders() {
			if order.ActorID == actorID {
				out = append(out, order)
			}
		}
		return nil
	})
	return out, err
}

// Payments lists all payment records.
func (s *Service) Payments(ctx context.Context) ([]domain.Payment, error) {
	var out []domain.Payment
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListPayments()
		return nil
	})
	return out, err
}

// Deliveries lists all delivery records.
func (s *Service) Deliveries(ctx context.Context) ([]domain.Delivery, error) {
	var out []domain.Delivery
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListDeliveries()
		return nil
	})
	return out, err
}

// --- admissions ---

// CreateApplication registers a new admission application in PENDING state.
func (s *Service) CreateApplication(ctx context.Context, actorID string, app domain.Application) (domain.Application, error) {
	var created domain.Application
	err := s.instrument(ctx, "create_application", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapApply); err != nil {
				return err
			}
			if app.StudentID == "" {
				app.StudentID = actorID
			}
			var err error
			created, err = tx.CreateApplication(app)
			return err
		})
		return err
	})
	return created, err
}

// RecordApplicationPayment persists an application fee payment. A SUCCESS
// status also submits the application, atomically with the payment record; a
// failed payment is recorded without touching the application state.
func (s *Service) RecordApplicationPayment(ctx context.Context, actorID, applicationID string, amount float64, method string, status domain.PaymentStatus) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, "record_application_payment", func(ctx context.Context) error {
		if status == domain.PaymentSuccess {
			var err error
			outcome, err = s.engine.Execute(ctx, domain.Command{
				Workflow:   WorkflowAdmissions,
				Transition: TransitionPaymentSucceeded,
				ResourceID: applicationID,
				ActorID:    actorID,
				Payload: domain.CommandPayload{
					Amount:        amount,
					Method:        method,
					PaymentStatus: status,
				},
			})
			return err
		}

		scope := []domain.ResourceKey{{Entity: domain.EntityApplication, ID: applicationID}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			app, ok := view.FindApplication(applicationID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityApplication, ID: applicationID}
			}
			payment, err := tx.CreatePayment(domain.Payment{
				ApplicationID: &app.ID,
				Amount:        amount,
				Method:        method,
				Status:        status,
			})
			if err != nil {
				return err
			}
			outcome = Outcome{
				Key:     domain.ResourceKey{Entity: domain.EntityApplication, ID: app.ID},
				State:   app.State,
				Records: []any{payment},
			}
			return nil
		})
		return err
	})
	return outcome, err
}

// StartReview moves a submitted application under review.
func (s *Service) StartReview(ctx context.Context, actorID, applicationID string) (Outcome, error) {
	return s.applicationTransition(ctx, "start_review", TransitionStartReview, actorID, applicationID)
}

// ApproveApplication approves an application under review.
func (s *Service) ApproveApplication(ctx context.Context, actorID, applicationID string) (Outcome, error) {
	return s.applicationTransition(ctx, "approve_application", TransitionApprove, actorID, applicationID)
}

// RejectApplication rejects an application under review.
func (s *Service) RejectApplication(ctx context.Context, actorID, applicationID string) (Outcome, error) {
	return s.applicationTransition(ctx, "reject_application", TransitionReject, actorID, applicationID)
}

func (s *Service) applicationTransition(ctx context.Context, op, transition, actorID, applicationID string) (Outcome, error) {
	var outcome Outcome
	err := s.instrument(ctx, op, func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.Execute(ctx, domain.Command{
			Workflow:   WorkflowAdmissions,
			Transition: transition,
			ResourceID: applicationID,
			ActorID:    actorID,
		})
		return err
	})
	return outcome, err
}

// DeleteApplication removes an application. A pending fee payment blocks the
// delete with Conflict.
func (s *Service) DeleteApplication(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_application", func(ctx context.Context) error {
		scope := []domain.ResourceKey{{Entity: domain.EntityApplication, ID: id}}
		_, err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
			return tx.DeleteApplication(id)
		})
		return err
	})
}

// Application returns one application by id.
func (s *Service) Application(ctx context.Context, id string) (domain.Application, error) {
	var out domain.Application
	err := s.store.View(ctx, func(view domain.RuleView) error {
		app, ok := view.FindApplication(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityApplication, ID: id}
		}
		out = app
		return nil
	})
	return out, err
}

// Applications lists all applications.
func (s *Service) Applications(ctx context.Context) ([]domain.Application, error) {
	var out []domain.Application
	err := s.store.View(ctx, func(view domain.RuleView) error {
		out = view.ListApplications()
		return nil
	})
	return out, err
}

// UploadDocument stores a supporting document's content in the blob backend
// and records it against the application. The blob write happens first; a
// failed metadata commit leaves an orphan blob rather than a dangling record.
func (s *Service) UploadDocument(ctx context.Context, actorID, applicationID, docType, contentType string, content io.Reader) (domain.Document, error) {
	var doc domain.Document
	err := s.instrument(ctx, "upload_document", func(ctx context.Context) error {
		if s.blobs == nil {
			return fmt.Errorf("no blob store configured")
		}
		if _, err := s.Application(ctx, applicationID); err != nil {
			return err
		}
		key := fmt.Sprintf("applications/%s/%s", applicationID, uuid.NewString())
		info, err := s.blobs.Put(ctx, key, content, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"application_id": applicationID, "type": docType},
		})
		if err != nil {
			return err
		}
		_, err = s.store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
			if err := s.authorize(tx.Snapshot(), actorID, domain.CapApply); err != nil {
				return err
			}
			var err error
			doc, err = tx.CreateDocument(domain.Document{
				ApplicationID: applicationID,
				Type:          docType,
				BlobKey:       info.Key,
			})
			return err
		})
		if err != nil {
			_, _ = s.blobs.Delete(ctx, key)
		}
		return err
	})
	return doc, err
}

// DocumentURL returns a time-limited download URL for a stored document.
// Backends without presigning report ErrUnsupported.
func (s *Service) DocumentURL(ctx context.Context, documentID string) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	var key string
	err := s.store.View(ctx, func(view domain.RuleView) error {
		doc, ok := view.FindDocument(documentID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityDocument, ID: documentID}
		}
		key = doc.BlobKey
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET"})
}

// Documents lists the documents recorded for an application.
func (s *Service) Documents(ctx context.Context, applicationID string) ([]domain.Document, error) {
	var out []domain.Document
	err := s.store.View(ctx, func(view domain.RuleView) error {
		for _, doc := range view.ListDocuments() {
			if doc.ApplicationID == applicationID {
				out = append(out, doc)
			}
		}
		return nil
	})
	return out, err
}
