package entity

import (
	"encoding/json"
	"testing"
)

func TestJobLifecycle(t *testing.T) {
	job := NewAnalysisJob("story-1", 3, MethodIndirect)
	if job.Status != JobStatusPending {
		t.Fatalf("new job status = %s, want PENDING", job.Status)
	}

	if err := job.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != JobStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", job.Status)
	}
	if job.StartedAt == nil {
		t.Fatal("StartedAt not set")
	}

	if err := job.Complete(json.RawMessage(`{"characters":[]}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if job.Status != JobStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestJobStatusMonotonic(t *testing.T) {
	t.Run("cannot start twice", func(t *testing.T) {
		job := NewAnalysisJob("s", 1, MethodDirect)
		if err := job.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := job.Start(); err == nil {
			t.Fatal("second Start should fail")
		}
	})

	t.Run("cannot complete from pending", func(t *testing.T) {
		job := NewAnalysisJob("s", 1, MethodDirect)
		if err := job.Complete(nil); err == nil {
			t.Fatal("Complete from PENDING should fail")
		}
	})

	t.Run("completed rejects fail", func(t *testing.T) {
		job := NewAnalysisJob("s", 1, MethodIndirect)
		_ = job.Start()
		_ = job.Complete(json.RawMessage(`{}`))
		if err := job.Fail("late error"); err == nil {
			t.Fatal("Fail after COMPLETED should be rejected")
		}
		if job.Status != JobStatusCompleted {
			t.Fatalf("status changed to %s after rejected Fail", job.Status)
		}
	})

	t.Run("failed rejects complete", func(t *testing.T) {
		job := NewAnalysisJob("s", 1, MethodIndirect)
		_ = job.Start()
		_ = job.Fail("boom")
		if err := job.Complete(json.RawMessage(`{}`)); err == nil {
			t.Fatal("Complete after FAILED should be rejected")
		}
		if job.Status != JobStatusFailed {
			t.Fatalf("status changed to %s after rejected Complete", job.Status)
		}
	})

	t.Run("pending may fail directly", func(t *testing.T) {
		job := NewAnalysisJob("s", 1, MethodIndirect)
		if err := job.Fail("enqueue failed"); err != nil {
			t.Fatalf("Fail from PENDING: %v", err)
		}
		if job.Status != JobStatusFailed {
			t.Fatalf("status = %s, want FAILED", job.Status)
		}
	})
}

func TestParseMethod(t *testing.T) {
	if _, err := ParseMethod("direct"); err != nil {
		t.Fatalf("direct: %v", err)
	}
	if _, err := ParseMethod("indirect"); err != nil {
		t.Fatalf("indirect: %v", err)
	}
	if _, err := ParseMethod("hybrid"); err == nil {
		t.Fatal("unknown method should be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	cases := map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusInProgress: false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
