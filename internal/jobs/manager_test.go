package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

func okResolver(rec *model.ConsolidatedRecord) ResolveFunc {
	return func(_ context.Context, _ model.RUC) (*model.ConsolidatedRecord, error) {
		return rec, nil
	}
}

func waitDone(t *testing.T, m *Manager, id string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(id)
		require.NoError(t, err)
		if job.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestManager_SubmitAndComplete(t *testing.T) {
	ruc := model.RUC("20100070970")
	want := &model.ConsolidatedRecord{RUC: ruc, LegalName: "SUPERMERCADOS PERUANOS S.A."}

	m := NewManager(okResolver(want), 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, 1)

	job, err := m.Submit(ruc)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Contains(t, []model.JobStatus{model.JobPending, model.JobRunning, model.JobCompleted}, job.Status)

	done := waitDone(t, m, job.ID)
	assert.Equal(t, model.JobCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, want.LegalName, done.Result.LegalName)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
	assert.False(t, done.CompletedAt.Before(*done.StartedAt))
}

func TestManager_FailedResolution(t *testing.T) {
	m := NewManager(func(_ context.Context, _ model.RUC) (*model.ConsolidatedRecord, error) {
		return nil, errors.New("portal exploded")
	}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, 1)

	job, err := m.Submit(model.RUC("20131312955"))
	require.NoError(t, err)

	done := waitDone(t, m, job.ID)
	assert.Equal(t, model.JobFailed, done.Status)
	assert.Nil(t, done.Result)
	assert.Equal(t, "resolution failed", done.Error)
	assert.Contains(t, done.ErrorDetails, "portal exploded")
}

func TestManager_GetUnknownJob(t *testing.T) {
	m := NewManager(okResolver(nil), 10)
	_, err := m.Get("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_EvictsOldestWhenFull(t *testing.T) {
	// No workers: jobs stay pending so eviction order is purely CreatedAt.
	m := NewManager(okResolver(nil), 10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	var first *model.Job
	for i := 0; i < 10; i++ {
		job, err := m.Submit(model.RUC("20100070970"))
		require.NoError(t, err)
		if i == 0 {
			first = job
		}
	}

	// The 11th submission evicts the oldest 20% (2 jobs).
	_, err := m.Submit(model.RUC("20131312955"))
	require.NoError(t, err)

	_, err = m.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound, "oldest job must be evicted")
	assert.Len(t, m.List(), 9)
}

func TestManager_ListNewestFirst(t *testing.T) {
	m := NewManager(okResolver(nil), 10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	for i := 0; i < 3; i++ {
		_, err := m.Submit(model.RUC("20100070970"))
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))
}

func TestManager_Counts(t *testing.T) {
	m := NewManager(okResolver(nil), 10)
	for i := 0; i < 3; i++ {
		_, err := m.Submit(model.RUC("20100070970"))
		require.NoError(t, err)
	}

	counts := m.Counts()
	assert.Equal(t, 3, counts[model.JobPending])
	assert.Equal(t, 0, counts[model.JobCompleted])
}
