package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := e.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDLQ_RecordAndDue(t *testing.T) {
	q := NewDLQ(3, time.Minute)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q.nowFunc = func() time.Time { return now }

	ruc := model.RUC("20100070970")
	q.Record(ruc, "sunat", NewTransientError(errors.New("timeout"), 0))

	if len(q.Due()) != 0 {
		t.Fatal("entry should not be due before retryAfter elapses")
	}

	now = now.Add(2 * time.Minute)
	due := q.Due()
	if len(due) != 1 {
		t.Fatalf("expected 1 due entry, got %d", len(due))
	}
	if due[0].RUC != ruc {
		t.Errorf("expected %s, got %s", ruc, due[0].RUC)
	}
}

func TestDLQ_PermanentErrorsNeverDue(t *testing.T) {
	q := NewDLQ(3, time.Minute)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q.nowFunc = func() time.Time { return now }

	q.Record(model.RUC("20131312955"), "sunat", errors.New("layout changed"))

	now = now.Add(time.Hour)
	if len(q.Due()) != 0 {
		t.Error("permanent failures must not be offered for retry")
	}
}

func TestDLQ_ExhaustedRetriesDropOut(t *testing.T) {
	q := NewDLQ(2, time.Minute)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q.nowFunc = func() time.Time { return now }

	ruc := model.RUC("20548960771")
	transient := NewTransientError(errors.New("flaky"), 0)
	q.Record(ruc, "osce", transient) // retryCount 0
	q.Record(ruc, "osce", transient) // retryCount 1
	q.Record(ruc, "osce", transient) // retryCount 2 == max

	now = now.Add(time.Hour)
	if len(q.Due()) != 0 {
		t.Error("entry past max retries must not be offered")
	}
	if q.Len() != 1 {
		t.Errorf("expected entry retained for inspection, len = %d", q.Len())
	}
}

func TestDLQ_ResolveRemovesEntry(t *testing.T) {
	q := NewDLQ(3, time.Minute)
	ruc := model.RUC("20600074114")
	q.Record(ruc, "sunat", NewTransientError(errors.New("timeout"), 0))
	q.Resolve(ruc)
	if q.Len() != 0 {
		t.Errorf("expected empty queue, len = %d", q.Len())
	}
}
