package services

import (
	"context"
	"sync"
	"testing"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
)

func TestResolveOrCreateDeduplicates(t *testing.T) {
	conn := setupTestDB(t)
	s := NewClientService(conn, 0, nil)
	ctx := context.Background()

	first, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "Acme Security", Industry: "Security", UserCount: 40})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	second, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "  Acme Security ", Industry: "security "})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same client, got ids %d and %d", first.ID, second.ID)
	}
	if second.UserCount != 40 {
		t.Errorf("existing client should be returned unchanged, user_count = %d", second.UserCount)
	}

	other, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "Acme Security", Industry: "retail"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("a different industry must create a different client")
	}

	var count int64
	conn.Model(&models.Client{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 clients, got %d", count)
	}
}

func TestResolveOrCreateProspect(t *testing.T) {
	conn := setupTestDB(t)
	s := NewClientService(conn, 0, nil)
	ctx := context.Background()

	a, err := s.ResolveOrCreate(ctx, ClientInfo{Industry: "education"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if a.Name != DefaultClientName || a.Email != PlaceholderEmail {
		t.Errorf("unexpected prospect %q <%s>", a.Name, a.Email)
	}

	// prospects share the placeholder email but not the industry
	b, err := s.ResolveOrCreate(ctx, ClientInfo{Industry: "hospitality"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if a.ID == b.ID {
		t.Error("prospects of different industries must not be merged")
	}
}

func TestResolveOrCreateReturnsCopy(t *testing.T) {
	conn := setupTestDB(t)
	s := NewClientService(conn, 0, nil)
	ctx := context.Background()

	a, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "Harbor Ops", Industry: "maritime"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	a.Name = "mutated"
	b, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "Harbor Ops", Industry: "maritime"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if b.Name != "Harbor Ops" {
		t.Errorf("Name = %q", b.Name)
	}
}

func TestResolveOrCreateConcurrent(t *testing.T) {
	conn := setupTestDB(t)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	const workers = 10
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate services so lookups are not shared in-process
			s := NewClientService(conn, 0, nil)
			c, err := s.ResolveOrCreate(context.Background(), ClientInfo{Name: "Metro Transit", Industry: "Transportation"})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: ResolveOrCreate() error = %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d got client %d, want %d", i, ids[i], ids[0])
		}
	}
	var count int64
	conn.Model(&models.Client{}).Where("name = ? AND industry = ?", "Metro Transit", "transportation").Count(&count)
	if count != 1 {
		t.Errorf("expected 1 client row, got %d", count)
	}
}

func TestResolveOrCreateIgnoresCallerCancellation(t *testing.T) {
	conn := setupTestDB(t)
	s := NewClientService(conn, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := s.ResolveOrCreate(ctx, ClientInfo{Name: "Pier 9", Industry: "maritime"})
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if c.ID == 0 {
		t.Error("expected a stored client")
	}
}
