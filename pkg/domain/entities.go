// Package domain defines the persistent entities, state enumerations, error
// taxonomy, and rule evaluation primitives shared by the flowcore engine and
// its workflows.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityBook identifies a lending catalog record.
	EntityBook EntityType = "book"
	// EntityActor identifies a member, customer, or student record.
	EntityActor EntityType = "actor"
	// EntityLoan identifies a borrow transaction record.
	EntityLoan EntityType = "loan"
	// EntityProduct identifies a grocery catalog record.
	EntityProduct EntityType = "product"
	// EntityCart identifies a cart record with its line items.
	EntityCart EntityType = "cart"
	// EntityOrder identifies an order record with its frozen line items.
	EntityOrder EntityType = "order"
	// EntityPayment identifies a payment record.
	EntityPayment EntityType = "payment"
	// EntityDelivery identifies a delivery assignment record.
	EntityDelivery EntityType = "delivery"
	// EntityApplication identifies an admission application record.
	EntityApplication EntityType = "application"
	// EntityDocument identifies an uploaded admission document record.
	EntityDocument EntityType = "document"
)

// State is a workflow state value. Every stateful resource carries exactly one
// State drawn from its workflow's declared set.
type State string

// Lending workflow states.
const (
	BookAvailable    State = "AVAILABLE"
	BookNotAvailable State = "NOT_AVAILABLE"
)

// Ordering workflow states.
const (
	OrderPlaced         State = "PLACED"
	OrderConfirmed      State = "CONFIRMED"
	OrderOutForDelivery State = "OUT_FOR_DELIVERY"
)

// Admissions workflow states. Approved and rejected are terminal.
const (
	ApplicationPending     State = "PENDING"
	ApplicationSubmitted   State = "SUBMITTED"
	ApplicationUnderReview State = "UNDER_REVIEW"
	ApplicationApproved    State = "APPROVED"
	ApplicationRejected    State = "REJECTED"
)

// LoanStatus tracks a loan's own sub-lifecycle.
type LoanStatus string

// Loan statuses.
const (
	LoanOpen     LoanStatus = "open"
	LoanReturned LoanStatus = "returned"
)

// PaymentStatus tracks payment resolution.
type PaymentStatus string

// Payment statuses carried by payment records.
const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// DeliveryStatus tracks a delivery assignment.
type DeliveryStatus string

// Delivery statuses.
const (
	DeliveryAssigned  DeliveryStatus = "ASSIGNED"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
)

// Role is the coarse actor classification consumed by the authorizer.
type Role string

// Actor roles recognized by the static authorizer.
const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleCustomer  Role = "customer"
	RoleStudent   Role = "student"
	RoleStaff     Role = "staff"
	RoleAdmin     Role = "admin"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Book is the lending workflow's primary resource.
type Book struct {
	Base
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	State    State  `json:"state"`
}

// Actor represents a member, customer, or student issuing commands. Actors are
// read-only collaborators for the engine and carry no state machine.
type Actor struct {
	Base
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Loan records a book borrowed by a member. Identity fields never change after
// creation; ReturnDate is set exactly once when the loan resolves.
type Loan struct {
	Base
	BookID     string     `json:"book_id"`
	MemberID   string     `json:"member_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     LoanStatus `json:"status"`
}

// Open reports whether the loan is still unresolved.
func (l Loan) Open() bool { return l.Status == LoanOpen }

// Product is a grocery catalog entry carrying the live price.
type Product struct {
	Base
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// CartItem freezes a product's quantity and unit price at the moment it is
// added. The price is never recomputed from the live catalog.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Cart aggregates a customer's pending items and a running total.
type Cart struct {
	Base
	ActorID string     `json:"actor_id"`
	Items   []CartItem `json:"items"`
	Total   float64    `json:"total"`
}

// OrderItem is a line item copied from the cart at order placement with the
// frozen unit price.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is the ordering workflow's primary resource.
type Order struct {
	Base
	ActorID     string      `json:"actor_id"`
	Items       []OrderItem `json:"items"`
	Total       float64     `json:"total"`
	FinalAmount float64     `json:"final_amount"`
	OrderDate   time.Time   `json:"order_date"`
	State       State       `json:"state"`
}

// Payment records a settled or attempted payment against exactly one of an
// order or an application.
type Payment struct {
	Base
	OrderID       *string       `json:"order_id,omitempty"`
	ApplicationID *string       `json:"application_id,omitempty"`
	Amount        float64       `json:"amount"`
	Method        string        `json:"method,omitempty"`
	Status        PaymentStatus `json:"status"`
	PaidAt        time.Time     `json:"paid_at"`
}

// Delivery records a delivery assignment for an order.
type Delivery struct {
	Base
	OrderID    string         `json:"order_id"`
	AssignedTo string         `json:"assigned_to"`
	Status     DeliveryStatus `json:"status"`
	AssignedAt time.Time      `json:"assigned_at"`
}

// Application is the admissions workflow's primary resource.
type Application struct {
	Base
	StudentID string `json:"student_id"`
	Program   string `json:"program"`
	State     State  `json:"state"`
}

// Document records an uploaded admission document. File contents live in the
// blob store under BlobKey.
type Document struct {
	Base
	ApplicationID string    `json:"application_id"`
	Type          string    `json:"type"`
	BlobKey       string    `json:"blob_key"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// ResourceKey names a single stored entity for lock scoping and cascades.
type ResourceKey struct {
	Entity EntityType `json:"entity"`
	ID     string     `json:"id"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured for rule evaluation
// and the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
