package progress

import (
	"context"
	"sync"
)

type Kind string

const (
	KindShell    Kind = "shell"
	KindStatus   Kind = "status"
	KindKeywords Kind = "keywords"
	KindProgress Kind = "progress"
	KindResults  Kind = "results"
	KindError    Kind = "error"
)

// Percent milestones of a discovery run.
const (
	LoginPercent = 5
	SearchBase   = 10
	SearchRange  = 80
	SortPercent  = 95
	DonePercent  = 100
)

// Event is one message on a run's progress stream.
type Event struct {
	Seq     int    `json:"seq"`
	Kind    Kind   `json:"kind"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindResults || e.Kind == KindError
}

// Percent maps done/total onto [base, base+rng], truncating.
func Percent(base, rng, done, total int) int {
	if total <= 0 {
		return base
	}
	done = max(0, min(done, total))
	return base + done*rng/total
}

// Stream is the ordered, single-consumer event channel of one run.
// Every emit goes through one lock so consumers see events in emission
// order with non-decreasing percent values. Percent reaches 100 only on
// the terminal Results or Error event, which also closes the stream.
type Stream struct {
	ctx context.Context
	ch  chan Event

	mu     sync.Mutex
	seq    int
	last   int
	closed bool
}

// NewStream returns a stream whose emits give up once ctx is done.
func NewStream(ctx context.Context, buffer int) *Stream {
	return &Stream{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events is the consumer side.
func (s *Stream) Events() <-chan Event { return s.ch }

func (s *Stream) Shell(view any) bool { return s.emit(Event{Kind: KindShell, Data: view}) }

func (s *Stream) Status(msg string) bool { return s.emit(Event{Kind: KindStatus, Message: msg}) }

func (s *Stream) Keywords(preview []string, total int) bool {
	return s.emit(Event{Kind: KindKeywords, Data: map[string]any{"preview": preview, "total": total}})
}

func (s *Stream) Progress(percent int, msg string) bool {
	return s.emit(Event{Kind: KindProgress, Percent: percent, Message: msg})
}

func (s *Stream) Results(payload any) bool { return s.emit(Event{Kind: KindResults, Data: payload}) }

func (s *Stream) Error(msg string) bool { return s.emit(Event{Kind: KindError, Message: msg}) }

// Close ends the stream without a terminal event. Safe to call repeatedly.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// emit reports false when the event was dropped because the stream is
// closed or the consumer went away.
func (s *Stream) emit(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	if s.seq == 0 && e.Kind != KindShell {
		if !s.sendLocked(Event{Kind: KindShell}) {
			return false
		}
	}

	switch {
	case e.Terminal():
		e.Percent = DonePercent
	case e.Kind == KindProgress:
		e.Percent = max(s.last, min(e.Percent, DonePercent-1))
	default:
		e.Percent = s.last
	}

	if !s.sendLocked(e) {
		return false
	}
	if e.Terminal() {
		s.closeLocked()
	}
	return true
}

// sendLocked prefers delivery: a buffered slot wins over a done context.
func (s *Stream) sendLocked(e Event) bool {
	s.seq++
	e.Seq = s.seq
	select {
	case s.ch <- e:
		s.last = e.Percent
		return true
	default:
	}
	select {
	case s.ch <- e:
		s.last = e.Percent
		return true
	case <-s.ctx.Done():
		s.closeLocked()
		return false
	}
}
