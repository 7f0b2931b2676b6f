package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"flowcore/internal/core"
	"flowcore/pkg/domain"
)

// stubConn fakes the pgx database/sql surface the store touches: ping, DDL,
// snapshot select, and the upsert transaction.
type stubConn struct {
	mu      sync.Mutex
	execs   []string
	buckets map[string][]byte
}

type stubConnector struct{ conn *stubConn }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare unsupported") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }
func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}
func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if strings.HasPrefix(query, "INSERT INTO state") && len(args) == 2 {
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		if c.buckets == nil {
			c.buckets = make(map[string][]byte)
		}
		c.buckets[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(0), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := &stubRows{}
	for bucket, payload := range c.buckets {
		rows.data = append(rows.data, [2]driver.Value{bucket, append([]byte(nil), payload...)})
	}
	return rows, nil
}

func (c *stubConn) upserts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, q := range c.execs {
		if strings.HasPrefix(q, "INSERT INTO state") {
			out = append(out, q)
		}
	}
	return out
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	data [][2]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	dest[0] = r.data[r.pos][0]
	dest[1] = r.data[r.pos][1]
	r.pos++
	return nil
}

func openStubStore(t *testing.T, conn *stubConn) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("driver %q", driverName)
		}
		return sql.OpenDB(stubConnector{conn: conn}), nil
	})
	defer restore()
	store, err := NewStore("postgres://stub/flowcore", core.NewDefaultRulesEngine(core.DefaultWorkflows()...))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestCommitSnapshotsEveryBucket(t *testing.T) {
	conn := &stubConn{}
	store := openStubStore(t, conn)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, nil, func(tx domain.Transaction) error {
		_, err := tx.CreateBook(domain.Book{Title: "Dune"})
		return err
	}); err != nil {
		t.Fatal(err)
	}

	if got := len(conn.upserts()); got != 10 {
		t.Fatalf("expected one upsert per bucket, got %d", got)
	}
	var books []domain.Book
	if err := json.Unmarshal(conn.buckets["books"], &books); err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].Title != "Dune" {
		t.Fatalf("persisted books %+v", books)
	}
}

func TestOpenHydratesFromExistingSnapshot(t *testing.T) {
	seed, err := json.Marshal([]domain.Book{{Base: domain.Base{ID: "b1"}, Title: "Dune", State: domain.BookNotAvailable}})
	if err != nil {
		t.Fatal(err)
	}
	conn := &stubConn{buckets: map[string][]byte{"books": seed}}
	store := openStubStore(t, conn)
	defer func() { _ = store.Close() }()

	if err := store.View(context.Background(), func(view domain.RuleView) error {
		book, ok := view.FindBook("b1")
		if !ok {
			t.Fatal("seeded book missing after hydration")
		}
		if book.State != domain.BookNotAvailable {
			t.Fatalf("book state %s", book.State)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestFailedTransactionSkipsPersist(t *testing.T) {
	conn := &stubConn{}
	store := openStubStore(t, conn)
	defer func() { _ = store.Close() }()

	if _, err := store.RunInTransaction(context.Background(), nil, func(tx domain.Transaction) error {
		if _, err := tx.CreateBook(domain.Book{Title: "Ghost"}); err != nil {
			return err
		}
		return domain.ConflictError{Entity: domain.EntityBook, ID: "x", Detail: "forced"}
	}); err == nil {
		t.Fatal("expected transaction error")
	}
	if got := len(conn.upserts()); got != 0 {
		t.Fatalf("rolled back transaction persisted %d buckets", got)
	}
}
