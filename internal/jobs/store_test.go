package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mimic/internal/jobs"
	"mimic/internal/services"
	"mimic/internal/testsupport"
)

func newStore(t *testing.T) *jobs.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func mustNewJob(t *testing.T, text string) *jobs.Job {
	t.Helper()
	job, err := jobs.New(jobs.TypeFullPipeline, jobs.FullPipelineParams{
		Text:        text,
		ProfileID:   "vp-0a1b2c3d",
		AvatarImage: "/assets/portrait.png",
		OutputPath:  "/out/" + text + ".mp4",
	})
	if err != nil {
		t.Fatalf("jobs.New: %v", err)
	}
	return job
}

func TestSubmitAndGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustNewJob(t, "greeting")
	if err := store.Submit(ctx, job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	loaded, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected job")
	}
	if loaded.ID != job.ID || loaded.Type != job.Type || loaded.Status != jobs.StatusPending {
		t.Fatalf("unexpected job %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(job.CreatedAt) {
		t.Fatalf("creation time drifted: %v != %v", loaded.CreatedAt, job.CreatedAt)
	}
	if string(loaded.Parameters) != string(job.Parameters) {
		t.Fatalf("parameters drifted: %s != %s", loaded.Parameters, job.Parameters)
	}
	if loaded.StartedAt != nil || loaded.CompletedAt != nil || loaded.Result != nil || loaded.Error != "" {
		t.Fatalf("pending job must not carry outcome fields: %+v", loaded)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newStore(t)

	loaded, err := store.Get(context.Background(), "job-00000000000000000000000000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for missing job, got %+v", loaded)
	}
}

func TestSubmitRejectsNonPending(t *testing.T) {
	store := newStore(t)

	job := mustNewJob(t, "started")
	if err := job.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := store.Submit(context.Background(), job); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestUpdatePersistsOutcome(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustNewJob(t, "outcome")
	if err := store.Submit(ctx, job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := job.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job.UpdateProgress("synthesize_speech", 0.4)
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != jobs.StatusRunning || loaded.Progress != 0.4 || loaded.StageLabel != "synthesize_speech" {
		t.Fatalf("unexpected mid-run state %+v", loaded)
	}
	if loaded.StartedAt == nil {
		t.Fatal("start timestamp not persisted")
	}

	if err := job.Complete(jobs.Result{OutputPath: "/out/outcome.mp4", DurationSeconds: 9.5, StagesCompleted: []string{"load_profile"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	loaded, err = store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != jobs.StatusCompleted || loaded.Result == nil {
		t.Fatalf("completion not persisted: %+v", loaded)
	}
	if loaded.Result.OutputPath != "/out/outcome.mp4" || loaded.Result.DurationSeconds != 9.5 {
		t.Fatalf("unexpected result %+v", loaded.Result)
	}
}

func TestUpdateMissingJob(t *testing.T) {
	store := newStore(t)

	job := mustNewJob(t, "ghost")
	if err := store.Update(context.Background(), job); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListNewestFirstWithFilterAndLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var submitted []*jobs.Job
	for i := 0; i < 4; i++ {
		job := mustNewJob(t, "batch")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Submit(ctx, job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		submitted = append(submitted, job)
	}

	// Fail the oldest so the status filter has something to bite on.
	failed := submitted[0]
	if err := failed.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := failed.Fail("boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := store.List(ctx, jobs.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("list not newest-first at index %d", i)
		}
	}

	pending, err := store.List(ctx, jobs.ListOptions{Statuses: []jobs.Status{jobs.StatusPending}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}

	limited, err := store.List(ctx, jobs.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(limited))
	}
	if limited[0].ID != submitted[3].ID {
		t.Fatalf("expected newest job first, got %s", limited[0].ID)
	}
}

func TestNextPendingReturnsOldest(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	empty, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil on drained queue, got %+v", empty)
	}

	base := time.Now().UTC().Add(-time.Hour)
	first := mustNewJob(t, "first")
	first.CreatedAt = base
	second := mustNewJob(t, "second")
	second.CreatedAt = base.Add(time.Minute)
	for _, job := range []*jobs.Job{second, first} {
		if err := store.Submit(ctx, job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending job, got %+v", next)
	}
}

func TestCancelPendingOnlyAtomically(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	pending := mustNewJob(t, "cancellable")
	if err := store.Submit(ctx, pending); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancelled, err := store.Cancel(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("expected pending job to cancel")
	}
	loaded, err := store.Get(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != jobs.StatusCancelled || loaded.CompletedAt == nil {
		t.Fatalf("unexpected cancelled state %+v", loaded)
	}

	// A second cancel is a no-op, not an error.
	again, err := store.Cancel(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if again {
		t.Fatal("cancelled job must not cancel twice")
	}

	running := mustNewJob(t, "inflight")
	if err := store.Submit(ctx, running); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := running.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := store.Update(ctx, running); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cancelled, err = store.Cancel(ctx, running.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled {
		t.Fatal("running job must not cancel")
	}
}

func TestStatsAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := mustNewJob(t, "a")
	b := mustNewJob(t, "b")
	for _, job := range []*jobs.Job{a, b} {
		if err := store.Submit(ctx, job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusRunning] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	removed, err := store.Delete(ctx, b.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove the job")
	}
	removed, err = store.Delete(ctx, b.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed {
		t.Fatal("second delete must report nothing removed")
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	stuck := mustNewJob(t, "stuck")
	if err := store.Submit(ctx, stuck); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := stuck.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stuck.UpdateProgress("generate_lipsync", 0.7)
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}
	loaded, err := store.Get(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Status != jobs.StatusPending || loaded.Progress != 0 || loaded.StartedAt != nil {
		t.Fatalf("unexpected reset state %+v", loaded)
	}
}

func TestCleanupFinishedKeepsNewest(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var finished []*jobs.Job
	for i := 0; i < 5; i++ {
		job := mustNewJob(t, "done")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Submit(ctx, job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if err := job.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := job.Complete(jobs.Result{OutputPath: "/out/done.mp4"}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
		finished = append(finished, job)
	}
	survivor := mustNewJob(t, "pending")
	if err := store.Submit(ctx, survivor); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	removed, err := store.CleanupFinished(ctx, 2)
	if err != nil {
		t.Fatalf("CleanupFinished: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}

	remaining, err := store.List(ctx, jobs.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("expected 3 remaining, got %d", len(remaining))
	}
	for _, job := range remaining {
		switch job.ID {
		case survivor.ID, finished[4].ID, finished[3].ID:
		default:
			t.Fatalf("unexpected survivor %s", job.ID)
		}
	}
}
