package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/keywords"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/playlistsupply"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/progress"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/store"
	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

var (
	ErrMissingCredentials = errors.New("playlistsupply credentials missing")
	ErrMissingArtist      = errors.New("artist id is required")
)

// KeywordPreview is how many keywords the keywords event carries.
const KeywordPreview = 8

type Catalog interface {
	Artist(ctx context.Context, id string) (spotify.Artist, error)
	Track(ctx context.Context, id string) (spotify.Track, error)
}

type PoolBuilder interface {
	Build(ctx context.Context, source spotify.Artist) ([]spotify.Artist, error)
}

// SearchSession is a Searcher that has to log in first.
type SearchSession interface {
	Searcher
	Login(ctx context.Context, username, password string) error
}

type Saver interface {
	SaveRun(ctx context.Context, r store.Run) error
}

// Scope holds the collaborators of a single run. Nothing in it is
// shared with other runs.
type Scope struct {
	Catalog Catalog
	Tags    TagSource
	Pool    PoolBuilder
	Session SearchSession
}

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) present() bool { return c.Username != "" && c.Password != "" }

type Runner struct {
	NewScope    func() *Scope
	Engine      *Engine
	Credentials Credentials
	// Saver is optional.
	Saver Saver
}

type Request struct {
	RunID    string
	ArtistID string
	TrackID  string
	// Keywords is the user's comma-separated input.
	Keywords string
}

// Shell is the payload of the first event of a run.
type Shell struct {
	RunID    string `json:"run_id"`
	ArtistID string `json:"artist_id"`
	TrackID  string `json:"track_id,omitempty"`
	Keywords string `json:"keywords,omitempty"`
}

// Report is the terminal results payload.
type Report struct {
	RunID      string         `json:"run_id"`
	ArtistID   string         `json:"artist_id"`
	ArtistName string         `json:"artist_name"`
	TrackID    string         `json:"track_id,omitempty"`
	Keywords   []string       `json:"keywords"`
	Playlists  []PlaylistView `json:"playlists"`
	Partial    bool           `json:"partial"`
	Searched   int            `json:"searched"`
}

// Run executes one discovery run and reports it on out. Exactly one
// terminal event (results or error) is emitted unless the consumer has
// gone away, and out is closed on return.
func (r *Runner) Run(ctx context.Context, req Request, out *progress.Stream) (*Report, error) {
	defer out.Close()
	entry := log.WithFields(logrus.Fields{"run": req.RunID, "artist_id": req.ArtistID})

	out.Shell(Shell{RunID: req.RunID, ArtistID: req.ArtistID, TrackID: req.TrackID, Keywords: req.Keywords})

	fail := func(err error) (*Report, error) {
		entry.WithError(err).Warn("discovery run failed")
		out.Error(UserMessage(err))
		return nil, err
	}

	if req.ArtistID == "" {
		return fail(ErrMissingArtist)
	}
	if !r.Credentials.present() {
		return fail(ErrMissingCredentials)
	}

	sc := r.NewScope()

	out.Status("Fetching artist details...")
	artist, err := sc.Catalog.Artist(ctx, req.ArtistID)
	if err != nil {
		return fail(fmt.Errorf("fetch artist %s: %w", req.ArtistID, err))
	}
	in := keywords.Input{ArtistName: artist.Name, Genres: artist.Genres, UserCSV: req.Keywords}

	if req.TrackID != "" {
		out.Status("Fetching selected track...")
		track, err := sc.Catalog.Track(ctx, req.TrackID)
		switch {
		case ctx.Err() != nil:
			return fail(ctx.Err())
		case err != nil:
			entry.WithError(err).Warn("selected track lookup failed, continuing without it")
		default:
			if primary, ok := track.PrimaryArtist(); ok {
				in.TrackName = track.Name
				in.TrackArtist = primary.Name
			} else {
				entry.WithField("track_id", req.TrackID).Warn("selected track has no artists, ignoring it")
			}
		}
	}

	out.Status("Fetching artist tags...")
	tags, err := sc.Tags.Tags(ctx, artist.Name)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		entry.WithError(err).Warn("no tags available")
	}
	in.Tags = tags

	out.Status("Finding similar artists...")
	similar, err := sc.Pool.Build(ctx, artist)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		entry.WithError(err).Warn("similar artist pool incomplete")
	}
	for _, a := range similar {
		in.PoolNames = append(in.PoolNames, a.Name)
	}

	kws, err := keywords.Synthesize(in)
	if err != nil {
		return fail(err)
	}
	out.Keywords(head(kws, KeywordPreview), len(kws))

	out.Progress(progress.LoginPercent, "Logging in to PlaylistSupply...")
	if err := sc.Session.Login(ctx, r.Credentials.Username, r.Credentials.Password); err != nil {
		return fail(err)
	}

	res := r.Engine.Discover(ctx, kws, sc.Session, func(done, total int, kw string) {
		out.Progress(progress.Percent(progress.SearchBase, progress.SearchRange, done, total), "Searching: "+kw)
	})
	if res.FatalError != nil {
		return fail(res.FatalError)
	}

	views := res.Views()
	if len(views) > 0 {
		out.Progress(progress.SortPercent, "Sorting results...")
		rank.SortByFollowers(views)
	}

	report := &Report{
		RunID:      req.RunID,
		ArtistID:   artist.ID,
		ArtistName: artist.Name,
		TrackID:    req.TrackID,
		Keywords:   kws,
		Playlists:  views,
		Partial:    res.HadPartialErrors,
		Searched:   res.Attempted,
	}
	entry.WithFields(logrus.Fields{
		"keywords":  len(kws),
		"playlists": len(views),
		"partial":   report.Partial,
	}).Info("discovery run finished")

	r.save(ctx, report)
	out.Results(report)
	return report, nil
}

func (r *Runner) save(ctx context.Context, rep *Report) {
	if r.Saver == nil || rep.RunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.Saver.SaveRun(ctx, rep.StoreRun()); err != nil {
		log.WithError(err).WithField("run", rep.RunID).Error("could not save discovery run")
	}
}

// StoreRun converts the report into its persisted form.
func (rep *Report) StoreRun() store.Run {
	run := store.Run{
		ID:         rep.RunID,
		ArtistID:   rep.ArtistID,
		ArtistName: rep.ArtistName,
		TrackID:    rep.TrackID,
		Keywords:   rep.Keywords,
		Partial:    rep.Partial,
		Playlists:  make([]store.Playlist, 0, len(rep.Playlists)),
	}
	for _, v := range rep.Playlists {
		run.Playlists = append(run.Playlists, store.Playlist{
			ID:          v.ID,
			Name:        v.Name,
			URL:         v.URL,
			Description: v.Description,
			TracksTotal: v.TracksTotal,
			Followers:   v.Followers,
			Email:       v.Email,
			OwnerName:   v.OwnerName,
			OwnerURL:    v.OwnerURL,
			FoundBy:     v.FoundBy,
		})
	}
	return run
}

// UserMessage turns a run error into the text shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, keywords.ErrNoKeywords):
		return "No keywords available for searching."
	case errors.Is(err, ErrMissingCredentials):
		return "PlaylistSupply credentials missing."
	case errors.Is(err, ErrMissingArtist):
		return "An artist must be selected."
	case errors.Is(err, playlistsupply.ErrAuth):
		return "PlaylistSupply login failed. Check credentials."
	case errors.Is(err, playlistsupply.ErrSessionInvalid):
		return "PlaylistSupply session invalid/expired."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Discovery cancelled."
	case errors.Is(err, spotify.ErrNotFound):
		return "Artist not found."
	case errors.Is(err, spotify.ErrRateLimited):
		return "Spotify rate limit reached. Try again shortly."
	default:
		return "Discovery failed. Please try again."
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
