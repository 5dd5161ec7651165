package pool

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

var log = logrus.WithField("component", "pool")

type Catalog interface {
	SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]spotify.Artist, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]spotify.Artist, error)
	Artist(ctx context.Context, id string) (spotify.Artist, error)
}

// SimilarSource lists names of artists similar to the given one.
type SimilarSource interface {
	SimilarArtistNames(ctx context.Context, artist string, maxPages int) ([]string, error)
}

// Builder assembles the similar-artist pool for one run. It memoizes
// name lookups, so it should not outlive the run that created it.
type Builder struct {
	Catalog Catalog
	Similar SimilarSource

	MaxGenres   int
	PerGenre    int
	MaxPages    int
	GenreDelay  time.Duration
	LookupDelay time.Duration

	resolved map[string]*spotify.Artist
}

func NewBuilder(c Catalog, s SimilarSource) *Builder {
	return &Builder{
		Catalog:     c,
		Similar:     s,
		MaxGenres:   3,
		PerGenre:    50,
		MaxPages:    5,
		GenreDelay:  150 * time.Millisecond,
		LookupDelay: 100 * time.Millisecond,
		resolved:    map[string]*spotify.Artist{},
	}
}

// pool keeps insertion order; a later write for the same id replaces
// the earlier value in place.
type pool struct {
	exclude string
	order   []string
	byID    map[string]spotify.Artist
}

func (p *pool) put(a spotify.Artist) {
	if a.ID == "" || a.ID == p.exclude {
		return
	}
	if _, ok := p.byID[a.ID]; !ok {
		p.order = append(p.order, a.ID)
	}
	p.byID[a.ID] = a
}

func (p *pool) list() []spotify.Artist {
	out := make([]spotify.Artist, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id])
	}
	return out
}

// Build returns the union of genre-search hits for the source's top
// genres and the scraped similar artists that resolve in the catalog.
// The source artist is never part of the result. Individual lookup
// failures are skipped; only cancellation is returned as an error.
func (b *Builder) Build(ctx context.Context, source spotify.Artist) ([]spotify.Artist, error) {
	p := &pool{exclude: source.ID, byID: map[string]spotify.Artist{}}
	entry := log.WithField("artist", source.Name)

	genres := source.Genres
	if len(genres) > b.MaxGenres {
		genres = genres[:b.MaxGenres]
	}
	for i, g := range genres {
		if i > 0 {
			if err := sleep(ctx, b.GenreDelay); err != nil {
				return p.list(), err
			}
		}
		hits, err := b.Catalog.SearchArtistsByGenre(ctx, g, b.PerGenre)
		if err != nil {
			if ctx.Err() != nil {
				return p.list(), ctx.Err()
			}
			entry.WithError(err).WithField("genre", g).Warn("genre search failed")
			continue
		}
		for _, a := range hits {
			p.put(a)
		}
	}

	names, err := b.Similar.SimilarArtistNames(ctx, source.Name, b.MaxPages)
	if err != nil {
		if ctx.Err() != nil {
			return p.list(), ctx.Err()
		}
		entry.WithError(err).Warn("similar artist scrape failed, continuing with genre pool")
		names = nil
	}

	for i, name := range names {
		if i > 0 {
			if err := sleep(ctx, b.LookupDelay); err != nil {
				return p.list(), err
			}
		}
		a, err := b.resolve(ctx, name)
		if errors.Is(err, spotify.ErrRateLimited) {
			entry.Warn("rate limited while resolving similar artists, stopping")
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return p.list(), ctx.Err()
			}
			entry.WithError(err).WithField("name", name).Debug("could not resolve similar artist")
			continue
		}
		if a != nil {
			p.put(*a)
		}
	}

	out := p.list()
	entry.WithField("size", len(out)).Info("similar artist pool built")
	return out, nil
}

// resolve maps a scraped name to a full catalog artist. A nil artist
// with a nil error means the name has no match.
func (b *Builder) resolve(ctx context.Context, name string) (*spotify.Artist, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := b.resolved[key]; ok {
		return a, nil
	}
	if b.resolved == nil {
		b.resolved = map[string]*spotify.Artist{}
	}

	hits, err := b.Catalog.SearchArtists(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		b.resolved[key] = nil
		return nil, nil
	}
	full, err := b.Catalog.Artist(ctx, hits[0].ID)
	if err != nil {
		return nil, err
	}
	b.resolved[key] = &full
	return &full, nil
}

func sleep(ctx context.Context, d time.Duration) error {
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
