package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager()
	j := m.CreateJob("A", "T")
	require.Equal(t, StatusPending, j.Status)
	require.NotEmpty(t, j.ID)

	require.True(t, m.Update(j.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Percent = 40
	}))
	require.False(t, m.Update("missing", func(*Job) {}))

	got, ok := m.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, 40, got.Percent)

	got.Percent = 99
	again, _ := m.Get(j.ID)
	require.Equal(t, 40, again.Percent, "Get must return a copy")
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	j := m.CreateJob("A", "")
	ctx, cancel := context.WithCancel(context.Background())
	m.SetCancel(j.ID, cancel)

	require.True(t, m.Cancel(j.ID))
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	m.Update(j.ID, func(j *Job) { j.Status = StatusError })
	require.False(t, m.Cancel(j.ID), "finished jobs cannot be cancelled")
	require.False(t, m.Cancel("missing"))
}

func TestManager_Prune(t *testing.T) {
	m := NewManager()
	done := m.CreateJob("A", "")
	live := m.CreateJob("B", "")
	m.Update(done.ID, func(j *Job) { j.Status = StatusFinished })

	require.Equal(t, 1, m.Prune(time.Now().Add(time.Minute)))
	_, ok := m.Get(done.ID)
	require.False(t, ok)
	_, ok = m.Get(live.ID)
	require.True(t, ok)
}

func TestManager_ConcurrentUpdates(t *testing.T) {
	m := NewManager()
	j := m.CreateJob("A", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update(j.ID, func(j *Job) { j.Percent++ })
			m.Get(j.ID)
		}()
	}
	wg.Wait()

	got, _ := m.Get(j.ID)
	require.Equal(t, 50, got.Percent)
}
