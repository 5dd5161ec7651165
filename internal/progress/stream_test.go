package progress

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(s *Stream) []Event {
	var out []Event
	for e := range s.Events() {
		out = append(out, e)
	}
	return out
}

func TestPercent(t *testing.T) {
	require.Equal(t, 10, Percent(SearchBase, SearchRange, 0, 4))
	require.Equal(t, 30, Percent(SearchBase, SearchRange, 1, 4))
	require.Equal(t, 90, Percent(SearchBase, SearchRange, 4, 4))
	require.Equal(t, 36, Percent(SearchBase, SearchRange, 1, 3))
	require.Equal(t, 90, Percent(SearchBase, SearchRange, 9, 4), "done is clamped to total")
	require.Equal(t, 10, Percent(SearchBase, SearchRange, 3, 0))
}

func TestStream_OrderAndMonotonicPercent(t *testing.T) {
	s := NewStream(context.Background(), 32)

	s.Shell(map[string]string{"artist": "a"})
	s.Status("Fetching tags")
	s.Progress(LoginPercent, "Logging in...")
	s.Progress(50, "Searching: b")
	s.Progress(30, "Searching: a")
	s.Progress(120, "too far")
	s.Progress(SortPercent, "Sorting results...")
	s.Results([]string{"x"})

	events := collect(s)
	require.Len(t, events, 8)
	require.Equal(t, KindShell, events[0].Kind)

	last := 0
	for i, e := range events {
		require.Equal(t, i+1, e.Seq)
		require.GreaterOrEqual(t, e.Percent, last)
		last = e.Percent
		if !e.Terminal() {
			require.Less(t, e.Percent, 100)
		}
	}
	require.Equal(t, 50, events[4].Percent, "late lower percent is held at the previous value")
	require.Equal(t, 99, events[5].Percent)
	require.Equal(t, KindResults, events[7].Kind)
	require.Equal(t, 100, events[7].Percent)
}

func TestStream_ShellIsAlwaysFirst(t *testing.T) {
	s := NewStream(context.Background(), 4)
	s.Error("No keywords available.")

	events := collect(s)
	require.Len(t, events, 2)
	require.Equal(t, KindShell, events[0].Kind)
	require.Equal(t, KindError, events[1].Kind)
	require.Equal(t, 100, events[1].Percent)
}

func TestStream_TerminalClosesAndDropsLateEvents(t *testing.T) {
	s := NewStream(context.Background(), 8)
	s.Shell(nil)
	require.True(t, s.Error("boom"))
	require.True(t, s.Closed())
	require.False(t, s.Progress(40, "late"))
	require.False(t, s.Results(nil))
	s.Close()

	require.Len(t, collect(s), 2)
}

func TestStream_ConsumerGoneUnblocksProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, 0)

	done := make(chan bool)
	go func() { done <- s.Shell(nil) }()

	cancel()
	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("emit blocked after consumer went away")
	}
	require.True(t, s.Closed())
}

func TestStream_BufferedTerminalSurvivesCancel(t *testing.T) {
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		s := NewStream(ctx, 16)
		s.Shell(nil)
		cancel()
		require.True(t, s.Error("Discovery cancelled."), "run %d", i)

		got := collect(s)
		require.Len(t, got, 2)
		require.Equal(t, KindError, got[1].Kind)
		require.Equal(t, DonePercent, got[1].Percent)
	}
}

func TestStream_ConcurrentProducersStayMonotonic(t *testing.T) {
	s := NewStream(context.Background(), 0)

	var got []Event
	consumed := make(chan struct{})
	go func() {
		got = collect(s)
		close(consumed)
	}()

	s.Shell(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Progress(Percent(SearchBase, SearchRange, i+1, 20), "kw")
		}(i)
	}
	wg.Wait()
	s.Results(nil)
	<-consumed

	last := 0
	for _, e := range got {
		require.GreaterOrEqual(t, e.Percent, last)
		last = e.Percent
	}
	require.Equal(t, 100, last)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSSE(&buf, Event{Seq: 3, Kind: KindProgress, Percent: 42, Message: "Searching: x"}))

	out := buf.String()
	require.Contains(t, out, "id:3\n")
	require.Contains(t, out, "event:progress\n")
	require.Contains(t, out, `"percent":42`)
	require.True(t, strings.HasSuffix(out, "\n\n"))
}
