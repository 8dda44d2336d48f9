package export_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-formexport/pkg/export"
)

func newJob(id string, formIDs ...string) *export.Job {
	job := &export.Job{
		ID:        id,
		ProjectID: "p1",
		FormIDs:   formIDs,
		Items:     make(map[string]export.Item),
		Status:    export.StatusPending,
		CreatedAt: time.Now(),
	}
	for _, formID := range formIDs {
		job.Items[formID] = export.Item{FormID: formID, Stage: export.StageQueued}
	}
	return job
}

func TestStoreReadReturnsIndependentSnapshots(t *testing.T) {
	store := export.NewStore()
	store.Create(newJob("j1", "f1"))

	first, err := store.Read("j1")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	first.Status = export.StatusFailed
	first.Items["f1"] = export.Item{FormID: "f1", Stage: export.StageFailed}

	second, err := store.Read("j1")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if second.Status != export.StatusPending {
		t.Fatalf("status = %q, want %q", second.Status, export.StatusPending)
	}
	if second.Items["f1"].Stage != export.StageQueued {
		t.Fatalf("item stage = %q, want %q", second.Items["f1"].Stage, export.StageQueued)
	}
}

func TestStoreUnknownJobIsNotFound(t *testing.T) {
	store := export.NewStore()
	if _, err := store.Read("missing"); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("Read() error = %v, want ErrNotFound", err)
	}
	if _, err := store.Status("missing"); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("Status() error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateJob("missing", func(*export.Job) {}); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("UpdateJob() error = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateItemIsAtomicUnderConcurrentReads(t *testing.T) {
	store := export.NewStore()
	store.Create(newJob("j1", "f1", "f2"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			job, err := store.Read("j1")
			if err != nil {
				return
			}
			// A failed item must always carry its kind with it.
			for _, item := range job.Items {
				if item.Stage == export.StageFailed && item.FailureKind == "" {
					t.Error("observed failed item without a failure kind")
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		store.UpdateItem("j1", "f1", func(item *export.Item) {
			item.Stage = export.StageFailed
			item.FailureKind = "remote_error"
		})
		store.UpdateItem("j1", "f1", func(item *export.Item) {
			item.Stage = export.StageQueued
			item.FailureKind = ""
		})
	}
	close(stop)
	wg.Wait()
}

func TestStoreEvictRemovesJob(t *testing.T) {
	store := export.NewStore()
	store.Create(newJob("j1", "f1"))
	store.Evict("j1")
	if _, err := store.Read("j1"); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("Read() after evict = %v, want ErrNotFound", err)
	}
	store.Evict("j1") // idempotent
}
