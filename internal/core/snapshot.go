package core

import "flowcore/pkg/domain"

// Snapshot captures the full store state for durable persistence.
type Snapshot struct {
	Books        []domain.Book        `json:"books"`
	Actors       []domain.Actor       `json:"actors"`
	Loans        []domain.Loan        `json:"loans"`
	Products     []domain.Product     `json:"products"`
	Carts        []domain.Cart        `json:"carts"`
	Orders       []domain.Order       `json:"orders"`
	Payments     []domain.Payment     `json:"payments"`
	Deliveries   []domain.Delivery    `json:"deliveries"`
	Applications []domain.Application `json:"applications"`
	Documents    []domain.Document    `json:"documents"`
}

// ExportState clones the current store state for external persistence.
func (s *MemoryStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *MemoryStore) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

func snapshotFromState(state memoryState) Snapshot {
	var snap Snapshot
	for _, v := range state.books {
		snap.Books = append(snap.Books, v)
	}
	for _, v := range state.actors {
		snap.Actors = append(snap.Actors, v)
	}
	for _, v := range state.loans {
		snap.Loans = append(snap.Loans, cloneLoan(v))
	}
	for _, v := range state.products {
		snap.Products = append(snap.Products, v)
	}
	for _, v := range state.carts {
		snap.Carts = append(snap.Carts, cloneCart(v))
	}
	for _, v := range state.orders {
		snap.Orders = append(snap.Orders, cloneOrder(v))
	}
	for _, v := range state.payments {
		snap.Payments = append(snap.Payments, clonePayment(v))
	}
	for _, v := range state.deliveries {
		snap.Deliveries = append(snap.Deliveries, v)
	}
	for _, v := range state.applications {
		snap.Applications = append(snap.Applications, v)
	}
	for _, v := range state.documents {
		snap.Documents = append(snap.Documents, v)
	}
	return snap
}

func stateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for _, v := range snap.Books {
		state.books[v.ID] = v
	}
	for _, v := range snap.Actors {
		state.actors[v.ID] = v
	}
	for _, v := range snap.Loans {
		state.loans[v.ID] = cloneLoan(v)
	}
	for _, v := range snap.Products {
		state.products[v.ID] = v
	}
	for _, v := range snap.Carts {
		state.carts[v.ID] = cloneCart(v)
	}
	for _, v := range snap.Orders {
		state.orders[v.ID] = cloneOrder(v)
	}
	for _, v := range snap.Payments {
		state.payments[v.ID] = clonePayment(v)
	}
	for _, v := range snap.Deliveries {
		state.deliveries[v.ID] = v
	}
	for _, v := range snap.Applications {
		state.applications[v.ID] = v
	}
	for _, v := range snap.Documents {
		state.documents[v.ID] = v
	}
	return state
}
