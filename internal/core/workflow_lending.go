package core

import (
	"time"

	"flowcore/pkg/domain"
)

// Loan term applied at borrow time.
const loanDays = 14

// WorkflowLending is the name of the library lending workflow.
const WorkflowLending = "lending"

// Lending transition names.
const (
	TransitionBorrow = "borrow"
	TransitionReturn = "return"
)

// LendingWorkflow declares the borrow/return state machine over books.
//
// Borrow is declared from any state so that borrowing an unavailable book
// fails the guard with reason NOT_AVAILABLE rather than being rejected as an
// undeclared transition.
func LendingWorkflow() domain.Workflow {
	return domain.Workflow{
		Name:     WorkflowLending,
		Resource: domain.EntityBook,
		States:   []domain.State{domain.BookAvailable, domain.BookNotAvailable},
		Initial:  domain.BookAvailable,
		Transitions: []domain.TransitionSpec{
			{
				Name:       TransitionBorrow,
				Next:       domain.BookNotAvailable,
				Capability: domain.CapBorrow,
				Guard: func(view domain.RuleView, cmd domain.Command) error {
					book, ok := view.FindBook(cmd.ResourceID)
					if !ok {
						return domain.NotFoundError{Entity: domain.EntityBook, ID: cmd.ResourceID}
					}
					if book.State != domain.BookAvailable {
						return domain.PreconditionFailedError{Reason: domain.ReasonNotAvailable, Detail: "book " + book.ID}
					}
					return nil
				},
				Cascades: func(_ domain.RuleView, cmd domain.Command, now time.Time) ([]domain.Cascade, error) {
					loan := domain.Loan{
						BookID:     cmd.ResourceID,
						MemberID:   cmd.ActorID,
						BorrowDate: now,
						DueDate:    now.AddDate(0, 0, loanDays),
						Status:     domain.LoanOpen,
					}
					return []domain.Cascade{{Op: domain.CascadeCreateLoan, Loan: &loan}}, nil
				},
			},
			{
				Name: TransitionReturn,
				Next: domain.BookAvailable,
				Guard: func(view domain.RuleView, cmd domain.Command) error {
					if _, ok := openLoanForBook(view, cmd.ResourceID); !ok {
						return domain.PreconditionFailedError{Reason: domain.ReasonNoOpenLoan, Detail: "book " + cmd.ResourceID}
					}
					return nil
				},
				Cascades: func(view domain.RuleView, cmd domain.Command, now time.Time) ([]domain.Cascade, error) {
					loan, ok := openLoanForBook(view, cmd.ResourceID)
					if !ok {
						return nil, domain.PreconditionFailedError{Reason: domain.ReasonNoOpenLoan, Detail: "book " + cmd.ResourceID}
					}
					returned := now
					return []domain.Cascade{{
						Op:     domain.CascadeResolveLoan,
						Target: domain.ResourceKey{Entity: domain.EntityLoan, ID: loan.ID},
						Loan:   &domain.Loan{ReturnDate: &returned},
					}}, nil
				},
			},
		},
	}
}

// openLoanForBook finds the unresolved loan referencing the book, if any. The
// open-record rule keeps this unique.
func openLoanForBook(view domain.RuleView, bookID string) (domain.Loan, bool) {
	for _, loan := range view.ListLoans() {
		if loan.BookID == bookID && loan.Open() {
			return loan, true
		}
	}
	return domain.Loan{}, false
}
