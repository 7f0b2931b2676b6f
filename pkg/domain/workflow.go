package domain

import "time"

// Capability names a permission the authorizer can grant to an actor role.
type Capability string

// Capabilities gating mutating commands.
const (
	CapCatalogWrite   Capability = "catalog.write"
	CapBorrow         Capability = "circulation.borrow"
	CapOrder          Capability = "ordering.place"
	CapAssignDelivery Capability = "ordering.assign_delivery"
	CapReview         Capability = "admissions.review"
	CapApply          Capability = "admissions.apply"
)

// Authorizer is the capability check collaborator. It replaces transport-level
// role headers with a typed decision.
type Authorizer interface {
	Allow(actor Actor, capability Capability) bool
}

// Command asks the engine to run one named transition against one resource on
// behalf of an actor.
type Command struct {
	Workflow   string
	Transition string
	ResourceID string
	ActorID    string
	Payload    CommandPayload
}

// CommandPayload carries transition-specific inputs. Unused fields stay zero.
type CommandPayload struct {
	Amount        float64
	Method        string
	PaymentStatus PaymentStatus
	AssignTo      string
	PaymentID     string
}

// GuardFunc evaluates a transition precondition against a transactional
// snapshot. It returns nil when the guard passes and a
// PreconditionFailedError (or NotFoundError for absent related entities)
// otherwise.
type GuardFunc func(view RuleView, cmd Command) error

// CascadeOp enumerates the dependent-entity effects a transition may emit.
type CascadeOp string

// Cascade operations applied by the coordinator inside the same transaction
// as the primary state change.
const (
	// CascadeSetState moves a secondary resource to a new state.
	CascadeSetState CascadeOp = "set_state"
	// CascadeCreateLoan opens a borrow transaction record.
	CascadeCreateLoan CascadeOp = "create_loan"
	// CascadeResolveLoan stamps the return date on an open loan.
	CascadeResolveLoan CascadeOp = "resolve_loan"
	// CascadeCreatePayment records a payment.
	CascadeCreatePayment CascadeOp = "create_payment"
	// CascadeCreateDelivery records a delivery assignment.
	CascadeCreateDelivery CascadeOp = "create_delivery"
)

// Cascade is one dependent-entity instruction emitted by a transition. Exactly
// one of the record pointers is set for record-producing operations.
type Cascade struct {
	Op       CascadeOp
	Target   ResourceKey
	State    State
	Loan     *Loan
	Payment  *Payment
	Delivery *Delivery
}

// CascadeFunc computes a transition's cascade instructions from the
// transactional snapshot. Guards have already passed when it runs.
type CascadeFunc func(view RuleView, cmd Command, now time.Time) ([]Cascade, error)

// TransitionSpec declares one row of a workflow table: the states the
// transition may fire from, its guard, the next state, and the cascades it
// emits.
type TransitionSpec struct {
	Name       string
	From       []State
	Guard      GuardFunc
	Next       State
	Cascades   CascadeFunc
	Capability Capability
}

// Workflow is a declarative state machine over one resource entity type.
// Adding a workflow means adding a table, not engine code.
type Workflow struct {
	Name        string
	Resource    EntityType
	States      []State
	Initial     State
	Terminal    []State
	Transitions []TransitionSpec
}

// Spec returns the named transition's declaration.
func (w Workflow) Spec(name string) (TransitionSpec, bool) {
	for _, t := range w.Transitions {
		if t.Name == name {
			return t, true
		}
	}
	return TransitionSpec{}, false
}

// HasState reports whether s belongs to the workflow's declared state set.
func (w Workflow) HasState(s State) bool {
	for _, st := range w.States {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition is defined out of s.
func (w Workflow) IsTerminal(s State) bool {
	for _, st := range w.Terminal {
		if st == s {
			return true
		}
	}
	return false
}

// AllowsFrom reports whether the transition may fire from the given state.
// Terminal states never admit a transition; an empty From list admits any
// non-terminal declared state.
func (w Workflow) AllowsFrom(spec TransitionSpec, from State) bool {
	if w.IsTerminal(from) {
		return false
	}
	if len(spec.From) == 0 {
		return w.HasState(from)
	}
	for _, s := range spec.From {
		if s == from {
			return true
		}
	}
	return false
}
