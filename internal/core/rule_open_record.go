package core

import (
	"context"
	"fmt"

	"flowcore/pkg/domain"
)

// OpenRecordRule enforces that a book never carries more than one open loan at
// a time, regardless of which path staged the change. The borrow guard prevents
// this in normal operation; the rule catches imports and programmatic writes.
func OpenRecordRule() domain.Rule { return openRecordRule{} }

type openRecordRule struct{}

func (openRecordRule) Name() string { return "open_record" }

func (openRecordRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := map[string]bool{}
	for _, change := range changes {
		if change.Entity != domain.EntityLoan {
			continue
		}
		if loan, ok := change.After.(domain.Loan); ok {
			touched[loan.BookID] = true
		}
		if loan, ok := change.Before.(domain.Loan); ok {
			touched[loan.BookID] = true
		}
	}
	if len(touched) == 0 {
		return domain.Result{}, nil
	}

	open := map[string]int{}
	for _, loan := range view.ListLoans() {
		if loan.Open() && touched[loan.BookID] {
			open[loan.BookID]++
		}
	}

	res := domain.Result{}
	for bookID, count := range open {
		if count > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "open_record",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("book %s has %d open loans, at most one is allowed", bookID, count),
				Entity:   domain.EntityBook,
				EntityID: bookID,
			})
		}
	}
	return res, nil
}
