package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"truckflow/pkg/order"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	o := order.Order{ID: "o1", VendorID: "v1", CustomerID: "c1", Items: []byte(`[{"item_id":1}]`), Status: order.StatusPlaced, CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("o1", "v1", "c1", []byte(`[{"item_id":1}]`), order.StatusPlaced, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,vendor_id,customer_id,items,status,created_at FROM orders WHERE id=$1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "vendor_id", "customer_id", "items", "status", "created_at"}))

	if _, err := repo.Get(context.Background(), "missing"); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "vendor_id", "customer_id", "items", "status", "created_at"}).
		AddRow("o1", "v1", "c1", []byte(`[]`), "accepted", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,vendor_id,customer_id,items,status,created_at FROM orders WHERE id=$1")).
		WithArgs("o1").
		WillReturnRows(rows)

	o, err := repo.Get(context.Background(), "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Status != order.StatusAccepted || o.VendorID != "v1" {
		t.Fatalf("unexpected order %+v", o)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=$3 WHERE id=$1 AND status=$2")).
		WithArgs("o1", order.StatusPlaced, order.StatusAccepted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "o1", order.StatusPlaced, order.StatusAccepted); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=$3 WHERE id=$1 AND status=$2")).
		WithArgs("missing", order.StatusPlaced, order.StatusAccepted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if err := repo.UpdateStatus(context.Background(), "missing", order.StatusPlaced, order.StatusAccepted); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusStale(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=$3 WHERE id=$1 AND status=$2")).
		WithArgs("o1", order.StatusPlaced, order.StatusAccepted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)")).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := repo.UpdateStatus(context.Background(), "o1", order.StatusPlaced, order.StatusAccepted); err != order.ErrStaleStatus {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
}

func TestListByParticipant(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "vendor_id", "customer_id", "items", "status", "created_at"}).
		AddRow("o2", "v1", "c2", []byte(`[]`), "placed", now).
		AddRow("o1", "v1", "c1", []byte(`[]`), "completed", now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE vendor_id=$1 OR customer_id=$1 ORDER BY created_at DESC")).
		WithArgs("v1").
		WillReturnRows(rows)

	orders, err := repo.ListByParticipant(context.Background(), "v1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o2" {
		t.Fatalf("unexpected orders %+v", orders)
	}
}
