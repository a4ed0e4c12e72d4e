package memory

import (
	"context"
	"testing"
	"time"

	"truckflow/pkg/order"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := New()
	o := order.Order{ID: "1", VendorID: "v1", CustomerID: "c1", Status: order.StatusPlaced, CreatedAt: time.Now()}
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != order.StatusPlaced {
		t.Fatalf("expected placed, got %s", got.Status)
	}
	if err := repo.UpdateStatus(ctx, "1", order.StatusPlaced, order.StatusAccepted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = repo.Get(ctx, "1")
	if got.Status != order.StatusAccepted {
		t.Fatalf("expected accepted, got %s", got.Status)
	}
	if _, err := repo.Get(ctx, "2"); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusGuards(t *testing.T) {
	ctx := context.Background()
	repo := New()
	repo.Create(ctx, order.Order{ID: "1", VendorID: "v1", CustomerID: "c1", Status: order.StatusPlaced})

	if err := repo.UpdateStatus(ctx, "missing", order.StatusPlaced, order.StatusAccepted); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "1", order.StatusAccepted, order.StatusCompleted); err != order.ErrStaleStatus {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
}

func TestListByParticipant(t *testing.T) {
	ctx := context.Background()
	repo := New()
	now := time.Now()
	repo.Create(ctx, order.Order{ID: "1", VendorID: "v1", CustomerID: "c1", CreatedAt: now.Add(-2 * time.Minute)})
	repo.Create(ctx, order.Order{ID: "2", VendorID: "v1", CustomerID: "c2", CreatedAt: now.Add(-time.Minute)})
	repo.Create(ctx, order.Order{ID: "3", VendorID: "v2", CustomerID: "c1", CreatedAt: now})

	vendorOrders, err := repo.ListByParticipant(ctx, "v1")
	if err != nil {
		t.Fatalf("list vendor: %v", err)
	}
	if len(vendorOrders) != 2 || vendorOrders[0].ID != "2" {
		t.Fatalf("expected [2 1], got %+v", vendorOrders)
	}

	customerOrders, err := repo.ListByParticipant(ctx, "c1")
	if err != nil {
		t.Fatalf("list customer: %v", err)
	}
	if len(customerOrders) != 2 || customerOrders[0].ID != "3" {
		t.Fatalf("expected [3 1], got %+v", customerOrders)
	}

	none, err := repo.ListByParticipant(ctx, "c9")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v %v", none, err)
	}
}
