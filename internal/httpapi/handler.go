// Package httpapi exposes the service over a chi-routed JSON API. Actor
// identity travels in the X-Actor-ID header; authorization decisions happen
// in the core layer against the actor's stored role.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flowcore/internal/core"
	"flowcore/pkg/domain"
)

const actorHeader = "X-Actor-ID"

// Handler serves the JSON API over the service facade.
type Handler struct {
	svc    *core.Service
	logger *slog.Logger
}

// NewHandler constructs an API handler. A nil logger discards request logging.
func NewHandler(svc *core.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// Router builds the chi route tree. The metrics handler is mounted at
// /metrics when non-nil.
func (h *Handler) Router(metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/actors", func(r chi.Router) {
			r.Post("/", h.createActor)
			r.Get("/", h.listActors)
			r.Get("/{id}", h.getActor)
			r.Put("/{id}", h.updateActor)
			r.Delete("/{id}", h.deleteActor)
		})

		r.Route("/books", func(r chi.Router) {
			r.Post("/", h.createBook)
			r.Get("/", h.listBooks)
			r.Get("/{id}", h.getBook)
			r.Put("/{id}", h.updateBook)
			r.Delete("/{id}", h.deleteBook)
			r.Post("/{id}/borrow", h.borrowBook)
			r.Post("/{id}/return", h.returnBook)
		})
		r.Get("/loans", h.listLoans)

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/", h.listProducts)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/items", h.addCartItem)
			r.Delete("/items/{productID}", h.removeCartItem)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.placeOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Delete("/{id}", h.deleteOrder)
			r.Post("/{id}/pay", h.payOrder)
			r.Post("/{id}/assign-delivery", h.assignDelivery)
		})
		r.Get("/payments", h.listPayments)
		r.Get("/deliveries", h.listDeliveries)

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.createApplication)
			r.Get("/", h.listApplications)
			r.Get("/{id}", h.getApplication)
			r.Delete("/{id}", h.deleteApplication)
			r.Post("/{id}/payment", h.recordApplicationPayment)
			r.Post("/{id}/review", h.startReview)
			r.Post("/{id}/approve", h.approveApplication)
			r.Post("/{id}/reject", h.rejectApplication)
			r.Post("/{id}/documents", h.uploadDocument)
			r.Get("/{id}/documents", h.listDocuments)
		})
		r.Get("/documents/{id}/url", h.documentURL)
	})
	return r
}

func actorID(r *http.Request) string { return r.Header.Get(actorHeader) }

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// --- actors ---

func (h *Handler) createActor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string      `json:"name"`
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	actor, err := h.svc.CreateActor(r.Context(), domain.Actor{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, actor)
}

func (h *Handler) listActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.svc.Actors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}

func (h *Handler) getActor(w http.ResponseWriter, r *http.Request) {
	actor, err := h.svc.Actor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

// updateActor applies a partial update; absent fields keep their value.
func (h *Handler) updateActor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string      `json:"name"`
		Email *string      `json:"email"`
		Role  *domain.Role `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	actor, err := h.svc.UpdateActor(r.Context(), chi.URLParam(r, "id"), func(a *domain.Actor) error {
		if req.Name != nil {
			a.Name = *req.Name
		}
		if req.Email != nil {
			a.Email = *req.Email
		}
		if req.Role != nil {
			a.Role = *req.Role
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

func (h *Handler) deleteActor(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteActor(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- lending ---

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Author   string `json:"author"`
		Category string `json:"category"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	book, err := h.svc.CreateBook(r.Context(), actorID(r), domain.Book{Title: req.Title, Author: req.Author, Category: req.Category})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.Books(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.svc.Book(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// updateBook applies a partial catalog update. Availability is not editable
// here; it only moves through borrow and return.
func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    *string `json:"title"`
		Author   *string `json:"author"`
		Category *string `json:"category"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	book, err := h.svc.UpdateBook(r.Context(), actorID(r), chi.URLParam(r, "id"), func(b *domain.Book) error {
		if req.Title != nil {
			b.Title = *req.Title
		}
		if req.Author != nil {
			b.Author = *req.Author
		}
		if req.Category != nil {
			b.Category = *req.Category
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBook(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) borrowBook(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.BorrowBook(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) returnBook(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.ReturnBook(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	var loans []domain.Loan
	var err error
	if member := r.URL.Query().Get("member_id"); member != "" {
		loans, err = h.svc.LoansByMember(r.Context(), member)
	} else {
		loans, err = h.svc.Loans(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// --- ordering ---

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Stock int     `json:"stock"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), actorID(r), domain.Product{Name: req.Name, Price: req.Price, Stock: req.Stock})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Products(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// updateProduct applies a partial catalog update. Existing cart lines and
// orders keep their frozen prices.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string  `json:"name"`
		Price *float64 `json:"price"`
		Stock *int     `json:"stock"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), actorID(r), chi.URLParam(r, "id"), func(p *domain.Product) error {
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Price != nil {
			p.Price = *req.Price
		}
		if req.Stock != nil {
			p.Stock = *req.Stock
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.CartForActor(r.Context(), actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	cart, err := h.svc.AddCartItem(r.Context(), actorID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.RemoveCartItem(r.Context(), actorID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.PlaceOrder(r.Context(), actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var orders []domain.Order
	var err error
	if actor := r.URL.Query().Get("actor_id"); actor != "" {
		orders, err = h.svc.OrdersByActor(r.Context(), actor)
	} else {
		orders, err = h.svc.Orders(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
			return
		}
	}
	outcome, err := h.svc.PayOrder(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) assignDelivery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssignTo string `json:"assign_to"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	outcome, err := h.svc.AssignDelivery(r.Context(), actorID(r), chi.URLParam(r, "id"), req.AssignTo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.Payments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.svc.Deliveries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

// --- admissions ---

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"student_id"`
		Program   string `json:"program"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	app, err := h.svc.CreateApplication(r.Context(), actorID(r), domain.Application{StudentID: req.StudentID, Program: req.Program})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.svc.Applications(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Application(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteApplication(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordApplicationPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64              `json:"amount"`
		Method string               `json:"method"`
		Status domain.PaymentStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}
	outcome, err := h.svc.RecordApplicationPayment(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Amount, req.Method, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	h.applicationTransition(w, r, h.svc.StartReview)
}

func (h *Handler) approveApplication(w http.ResponseWriter, r *http.Request) {
	h.applicationTransition(w, r, h.svc.ApproveApplication)
}

func (h *Handler) rejectApplication(w http.ResponseWriter, r *http.Request) {
	h.applicationTransition(w, r, h.svc.RejectApplication)
}

func (h *Handler) applicationTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, applicationID string) (core.Outcome, error)) {
	outcome, err := fn(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("type")
	if docType == "" {
		docType = "document"
	}
	doc, err := h.svc.UploadDocument(r.Context(), actorID(r), chi.URLParam(r, "id"), docType, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) documentURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.DocumentURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
