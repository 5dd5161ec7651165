package discovery

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/playlistsupply"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
)

var log = logrus.WithField("component", "discovery")

// Searcher runs one keyword query against the playlist search tool.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]playlistsupply.Playlist, error)
}

// ProgressFunc is told how many keywords have finished, in order.
type ProgressFunc func(done, total int, keyword string)

// Candidate is a playlist found during a run along with every keyword
// that surfaced it.
type Candidate struct {
	playlistsupply.Playlist
	foundBy map[string]struct{}
}

// FoundBy returns the matching keywords, sorted.
func (c *Candidate) FoundBy() []string {
	out := make([]string, 0, len(c.foundBy))
	for k := range c.foundBy {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PlaylistView is the serialized form of a candidate.
type PlaylistView struct {
	playlistsupply.Playlist
	FoundBy    []string `json:"found_by"`
	Popularity *int     `json:"popularity,omitempty"`
}

func (v PlaylistView) FollowerCount() (int, bool) { return rank.ParseFollowers(v.Followers) }

func (v PlaylistView) PopularityScore() (int, bool) {
	if v.Popularity == nil {
		return 0, false
	}
	return *v.Popularity, true
}

// Result is the outcome of one keyword loop.
type Result struct {
	Playlists        map[string]*Candidate
	HadPartialErrors bool
	FatalError       error
	Attempted        int

	order []string
}

// Views returns the candidates in first-seen order.
func (r *Result) Views() []PlaylistView {
	out := make([]PlaylistView, 0, len(r.order))
	for _, id := range r.order {
		c := r.Playlists[id]
		out = append(out, PlaylistView{Playlist: c.Playlist, FoundBy: c.FoundBy()})
	}
	return out
}

// merge records pls as found by kw. Entries are keyed by the id parsed
// from the public URL; results without one are dropped.
func (r *Result) merge(kw string, pls []playlistsupply.Playlist) {
	for _, p := range pls {
		id, ok := playlistsupply.CanonicalID(p.URL)
		if !ok {
			continue
		}
		p.ID = id

		c, seen := r.Playlists[id]
		if !seen {
			c = &Candidate{Playlist: p, foundBy: map[string]struct{}{}}
			r.Playlists[id] = c
			r.order = append(r.order, id)
		}
		c.foundBy[kw] = struct{}{}
	}
}

type Options struct {
	// Delay is the pause between consecutive requests.
	Delay time.Duration
	// Jitter adds up to this much random time to each pause.
	Jitter time.Duration
	// Workers above 1 enables concurrent searches.
	Workers int
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) pause(ctx context.Context) error {
	d := e.opts.Delay
	if e.opts.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.opts.Jitter)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discover searches every keyword in order and merges the hits.
// A recoverable failure marks the result partial and moves on. An
// invalid session stops the loop and is returned as FatalError, as is
// cancellation of ctx.
func (e *Engine) Discover(ctx context.Context, keywords []string, s Searcher, onProgress ProgressFunc) *Result {
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}
	if e.opts.Workers > 1 {
		return e.discoverConcurrent(ctx, keywords, s, onProgress)
	}

	res := &Result{Playlists: map[string]*Candidate{}}
	total := len(keywords)
	for i, kw := range keywords {
		if err := ctx.Err(); err != nil {
			res.FatalError = err
			break
		}
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				res.FatalError = err
				break
			}
		}

		pls, err := s.Search(ctx, kw)
		res.Attempted++
		if err != nil {
			if errors.Is(err, playlistsupply.ErrSessionInvalid) {
				log.WithField("keyword", kw).Warn("session invalid, stopping search")
				res.FatalError = err
				break
			}
			log.WithField("keyword", kw).WithError(err).Warn("keyword search failed")
			res.HadPartialErrors = true
		} else {
			res.merge(kw, pls)
		}
		onProgress(i+1, total, kw)
	}
	return res
}

func (e *Engine) discoverConcurrent(ctx context.Context, keywords []string, s Searcher, onProgress ProgressFunc) *Result {
	res := &Result{Playlists: map[string]*Candidate{}}
	total := len(keywords)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	var mu sync.Mutex
	done := 0

	for i, kw := range keywords {
		i, kw := i, kw
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if i > 0 {
				if err := e.pause(gctx); err != nil {
					return nil
				}
			}
			if gctx.Err() != nil {
				return nil
			}

			pls, err := s.Search(gctx, kw)

			mu.Lock()
			defer mu.Unlock()
			res.Attempted++
			if err != nil {
				if errors.Is(err, playlistsupply.ErrSessionInvalid) {
					log.WithField("keyword", kw).Warn("session invalid, cancelling pending searches")
					return err
				}
				if gctx.Err() != nil {
					return nil
				}
				log.WithField("keyword", kw).WithError(err).Warn("keyword search failed")
				res.HadPartialErrors = true
			} else {
				res.merge(kw, pls)
			}
			done++
			onProgress(done, total, kw)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		res.FatalError = err
	} else if err := ctx.Err(); err != nil {
		res.FatalError = err
	}
	return res
}
