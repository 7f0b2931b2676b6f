package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcore/internal/blob"
	"flowcore/internal/core"
	"flowcore/pkg/domain"
)

type apiFixture struct {
	t      *testing.T
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	blobs, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	svc, _, err := core.NewInMemoryService(core.NewStaticAuthorizer(), blobs, nil)
	require.NoError(t, err)
	return &apiFixture{t: t, router: NewHandler(svc, nil).Router(nil)}
}

func (f *apiFixture) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) decode(rec *httptest.ResponseRecorder, v any) {
	f.t.Helper()
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (f *apiFixture) createActor(name string, role domain.Role) string {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/v1/actors", "", map[string]any{"name": name, "role": string(role)})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	var actor domain.Actor
	f.decode(rec, &actor)
	return actor.ID
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLendingEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	librarian := f.createActor("Lin", domain.RoleLibrarian)
	member := f.createActor("Mo", domain.RoleMember)
	student := f.createActor("Sam", domain.RoleStudent)

	rec := f.do(http.MethodPost, "/api/v1/books", student, map[string]any{"title": "Dune"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body errorBody
	f.decode(rec, &body)
	assert.Equal(t, "forbidden", body.Kind)

	rec = f.do(http.MethodPost, "/api/v1/books", librarian, map[string]any{"title": "Dune", "author": "Herbert"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book domain.Book
	f.decode(rec, &book)
	assert.Equal(t, domain.BookAvailable, book.State)

	rec = f.do(http.MethodPost, "/api/v1/books/"+book.ID+"/borrow", member, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome core.Outcome
	f.decode(rec, &outcome)
	assert.Equal(t, domain.BookNotAvailable, outcome.State)

	rec = f.do(http.MethodPost, "/api/v1/books/"+book.ID+"/borrow", member, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	f.decode(rec, &body)
	assert.Equal(t, "precondition_failed", body.Kind)
	assert.Equal(t, string(domain.ReasonNotAvailable), body.Reason)

	rec = f.do(http.MethodDelete, "/api/v1/books/"+book.ID, librarian, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	f.decode(rec, &body)
	assert.Equal(t, "conflict", body.Kind)

	rec = f.do(http.MethodPost, "/api/v1/books/"+book.ID+"/return", member, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/books/"+book.ID+"/return", member, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	f.decode(rec, &body)
	assert.Equal(t, string(domain.ReasonNoOpenLoan), body.Reason)

	rec = f.do(http.MethodGet, "/api/v1/loans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loans []domain.Loan
	f.decode(rec, &loans)
	require.Len(t, loans, 1)
	assert.False(t, loans[0].Open())

	rec = f.do(http.MethodGet, "/api/v1/loans?member_id="+member, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f.decode(rec, &loans)
	assert.Len(t, loans, 1)

	rec = f.do(http.MethodGet, "/api/v1/loans?member_id="+librarian, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loans = nil
	f.decode(rec, &loans)
	assert.Empty(t, loans)
}

func TestUpdateEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	librarian := f.createActor("Lin", domain.RoleLibrarian)
	admin := f.createActor("Ada", domain.RoleAdmin)
	student := f.createActor("Sam", domain.RoleStudent)

	rec := f.do(http.MethodPost, "/api/v1/books", librarian, map[string]any{"title": "Dime", "author": "Herbert"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var book domain.Book
	f.decode(rec, &book)

	rec = f.do(http.MethodPut, "/api/v1/books/"+book.ID, student, map[string]any{"title": "Dune"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/books/"+book.ID, librarian, map[string]any{"title": "Dune"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.decode(rec, &book)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Herbert", book.Author)

	rec = f.do(http.MethodPut, "/api/v1/books/nope", librarian, map[string]any{"title": "X"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "Coffee", "price": 50.0, "stock": 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	var product domain.Product
	f.decode(rec, &product)

	rec = f.do(http.MethodPut, "/api/v1/products/"+product.ID, admin, map[string]any{"price": 60.0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.decode(rec, &product)
	assert.Equal(t, 60.0, product.Price)
	assert.Equal(t, 10, product.Stock)

	rec = f.do(http.MethodPut, "/api/v1/actors/"+student, "", map[string]any{"email": "sam@example.edu"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var actor domain.Actor
	f.decode(rec, &actor)
	assert.Equal(t, "sam@example.edu", actor.Email)
	assert.Equal(t, "Sam", actor.Name)
}

func TestNotFoundAndUnknownActor(t *testing.T) {
	f := newAPIFixture(t)
	member := f.createActor("Mo", domain.RoleMember)

	rec := f.do(http.MethodGet, "/api/v1/books/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	f.decode(rec, &body)
	assert.Equal(t, "not_found", body.Kind)

	rec = f.do(http.MethodPost, "/api/v1/books/nope/borrow", member, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	librarian := f.createActor("Lin", domain.RoleLibrarian)
	book := f.do(http.MethodPost, "/api/v1/books", librarian, map[string]any{"title": "T"})
	require.Equal(t, http.StatusCreated, book.Code)
	var b domain.Book
	f.decode(book, &b)
	rec = f.do(http.MethodPost, "/api/v1/books/"+b.ID+"/borrow", "ghost-actor", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderingEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.createActor("Ada", domain.RoleAdmin)
	customer := f.createActor("Cara", domain.RoleCustomer)
	staff := f.createActor("Sven", domain.RoleStaff)

	rec := f.do(http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "Coffee", "price": 50.0, "stock": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product domain.Product
	f.decode(rec, &product)

	rec = f.do(http.MethodPost, "/api/v1/orders", customer, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	f.decode(rec, &body)
	assert.Equal(t, string(domain.ReasonCartEmpty), body.Reason)

	rec = f.do(http.MethodPost, "/api/v1/cart/items", customer, map[string]any{"product_id": product.ID, "quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cart domain.Cart
	f.decode(rec, &cart)
	assert.Equal(t, 250.0, cart.Total)

	rec = f.do(http.MethodPost, "/api/v1/orders", customer, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	f.decode(rec, &order)
	assert.Equal(t, domain.OrderPlaced, order.State)
	assert.Equal(t, 250.0, order.Total)
	assert.Equal(t, 225.0, order.FinalAmount)

	rec = f.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/assign-delivery", staff, map[string]any{"assign_to": "courier-7"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	f.decode(rec, &body)
	assert.Equal(t, string(domain.ReasonNotConfirmed), body.Reason)

	rec = f.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/pay", customer, map[string]any{"method": "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome core.Outcome
	f.decode(rec, &outcome)
	assert.Equal(t, domain.OrderConfirmed, outcome.State)

	rec = f.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/pay", customer, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	f.decode(rec, &body)
	assert.Equal(t, string(domain.ReasonAlreadyPaid), body.Reason)

	rec = f.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/assign-delivery", customer, map[string]any{"assign_to": "courier-7"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/assign-delivery", staff, map[string]any{"assign_to": "courier-7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.decode(rec, &outcome)
	assert.Equal(t, domain.OrderOutForDelivery, outcome.State)

	rec = f.do(http.MethodGet, "/api/v1/deliveries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deliveries []domain.Delivery
	f.decode(rec, &deliveries)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "courier-7", deliveries[0].AssignedTo)

	rec = f.do(http.MethodGet, "/api/v1/orders?actor_id="+customer, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []domain.Order
	f.decode(rec, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestAdmissionsEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	student := f.createActor("Sam", domain.RoleStudent)
	staff := f.createActor("Rev", domain.RoleStaff)

	rec := f.do(http.MethodPost, "/api/v1/applications", student, map[string]any{"program": "Physics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app domain.Application
	f.decode(rec, &app)
	assert.Equal(t, domain.ApplicationPending, app.State)
	assert.Equal(t, student, app.StudentID)

	// Review before submission hits the state table.
	rec = f.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/review", staff, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	f.decode(rec, &body)
	assert.Equal(t, "invalid_transition", body.Kind)

	rec = f.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/payment", student, map[string]any{"amount": 75.0, "method": "card", "status": "SUCCESS"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome core.Outcome
	f.decode(rec, &outcome)
	assert.Equal(t, domain.ApplicationSubmitted, outcome.State)

	rec = f.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/review", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/approve", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Terminal state admits nothing further.
	rec = f.do(http.MethodPost, "/api/v1/applications/"+app.ID+"/reject", staff, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDocumentUploadAndURL(t *testing.T) {
	f := newAPIFixture(t)
	student := f.createActor("Sam", domain.RoleStudent)

	rec := f.do(http.MethodPost, "/api/v1/applications", student, map[string]any{"program": "CS"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var app domain.Application
	f.decode(rec, &app)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications/"+app.ID+"/documents?type=transcript", strings.NewReader("transcript bytes"))
	req.Header.Set("X-Actor-ID", student)
	req.Header.Set("Content-Type", "application/pdf")
	upload := httptest.NewRecorder()
	f.router.ServeHTTP(upload, req)
	require.Equal(t, http.StatusCreated, upload.Code, upload.Body.String())
	var doc domain.Document
	f.decode(upload, &doc)
	assert.Equal(t, "transcript", doc.Type)
	assert.NotEmpty(t, doc.BlobKey)

	rec = f.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/documents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []domain.Document
	f.decode(rec, &docs)
	require.Len(t, docs, 1)

	rec = f.do(http.MethodGet, "/api/v1/documents/"+doc.ID+"/url", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var urlBody map[string]string
	f.decode(rec, &urlBody)
	assert.Contains(t, urlBody["url"], doc.BlobKey)
}
