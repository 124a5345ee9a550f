package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
)

func TestSanitizeBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"strips passwords", `{"email":"a@b.c","password":"x","newPassword":"y"}`, map[string]any{"email": "a@b.c"}},
		{"keeps other fields", `{"quantity":5}`, map[string]any{"quantity": float64(5)}},
		{"not an object", `[1,2,3]`, nil},
		{"empty", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SanitizeBody([]byte(tt.in))
			if tt.want == nil {
				if out != nil {
					t.Fatalf("expected nil, got %s", out)
				}
				return
			}
			var got map[string]any
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("unmarshal %s: %v", out, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("field %s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestLogServiceWritesQueuedEntries(t *testing.T) {
	repo := &fakeLogRepo{}
	svc := NewLogService(repo, nil)
	go svc.Run(context.Background())

	for i := 0; i < 5; i++ {
		svc.Enqueue(types.RequestLog{Method: "GET", Path: "/inventory", StatusCode: 200})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if repo.len() != 5 {
		t.Fatalf("expected 5 entries written, got %d", repo.len())
	}

	svc.Enqueue(types.RequestLog{Path: "/late"})
	if repo.len() != 5 {
		t.Fatalf("entry enqueued after Close was written")
	}
}

func TestLogServiceEnqueueDuringClose(t *testing.T) {
	repo := &fakeLogRepo{}
	svc := NewLogService(repo, nil)
	go svc.Run(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				svc.Enqueue(types.RequestLog{Method: "GET", Path: "/inventory"})
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if repo.len() > 8*50 {
		t.Fatalf("wrote %d entries, more than enqueued", repo.len())
	}
}

func TestLogServiceClearOld(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeLogRepo{entries: []types.RequestLog{
		{ID: "old", CreatedAt: now.AddDate(0, 0, -45)},
		{ID: "recent", CreatedAt: now.AddDate(0, 0, -3)},
	}}
	svc := NewLogService(repo, nil)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	deleted, err := svc.ClearOld(ctx, 0)
	if err != nil || deleted != 1 {
		t.Fatalf("ClearOld default: %d, %v", deleted, err)
	}
	deleted, err = svc.ClearOld(ctx, 2)
	if err != nil || deleted != 1 {
		t.Fatalf("ClearOld(2): %d, %v", deleted, err)
	}
	_, err = svc.ClearOld(ctx, -1)
	assertAppErr(t, err, apperr.KindBadRequest, "days must be a positive number")
}

func TestLogServiceListAndDelete(t *testing.T) {
	repo := &fakeLogRepo{}
	svc := NewLogService(repo, nil)
	ctx := context.Background()
	entry, _ := repo.Create(ctx, types.RequestLog{Method: "POST", Path: "/inventory/receive", StatusCode: 201})
	_, _ = repo.Create(ctx, types.RequestLog{Method: "GET", Path: "/inventory", StatusCode: 200})

	page, err := svc.List(ctx, LogListInput{Method: "post"})
	if err != nil || page.TotalItem != 1 || page.Items[0].ID != entry.ID {
		t.Fatalf("List: %+v, %v", page, err)
	}
	_, err = svc.List(ctx, LogListInput{StatusCode: "abc"})
	assertAppErr(t, err, apperr.KindBadRequest, "Invalid status_code")

	if err := svc.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = svc.Get(ctx, entry.ID)
	assertAppErr(t, err, apperr.KindNotFound, "Log not found")
}
