package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/auth"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/jobs"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/playlistsupply"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/pool"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/secret"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/store"
	"github.com/Jonnymurillo288/PlaylistFinder/lastfm"
	"github.com/Jonnymurillo288/PlaylistFinder/musicbrainz"
	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

var log = logrus.WithField("component", "main")

func setupLogging(cfg secret.Config) {
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func main() {
	cfg, err := secret.Load(".env")
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokenService(cfg.TokenSecret)
	if err != nil {
		log.WithError(err).Fatal("token service")
	}

	httpClient, err := auth.SpotifyHTTPClient(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, "")
	if err != nil {
		log.WithError(err).Fatal("spotify client")
	}
	catalog := spotify.NewClient(httpClient)
	mb := musicbrainz.NewClient("")

	var runs *store.Store
	if cfg.PGDSN != "" {
		runs, err = store.Open(cfg.PGDSN)
		if err != nil {
			log.WithError(err).Fatal("open store")
		}
		defer runs.Close()
		if err := runs.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("migrate store")
		}
	} else {
		log.Info("PG_DSN not set, discovery runs will not be persisted")
	}

	newScraper := func() *lastfm.Scraper { return lastfm.New("") }
	newPool := func() *pool.Builder {
		b := pool.NewBuilder(catalog, newScraper())
		b.MaxPages = cfg.LastFMMaxPages
		return b
	}

	runner := &discovery.Runner{
		// Every run gets its own session, cookie jar, scraper and lookup memo.
		NewScope: func() *discovery.Scope {
			return &discovery.Scope{
				Catalog: catalog,
				Tags:    discovery.FallbackTags{Primary: newScraper(), Secondary: mb},
				Pool:    newPool(),
				Session: playlistsupply.New(playlistsupply.Config{UserEmail: cfg.SupplyEmail}),
			}
		},
		Engine: discovery.NewEngine(discovery.Options{
			Delay:   cfg.SearchDelay,
			Jitter:  cfg.SearchJitter,
			Workers: cfg.SearchWorkers,
		}),
		Credentials: discovery.Credentials{Username: cfg.SupplyUser, Password: cfg.SupplyPass},
	}

	s := &server{
		tokens:     tokens,
		jobs:       jobs.NewManager(),
		runner:     runner,
		catalog:    catalog,
		mb:         mb,
		newScraper: newScraper,
		newPool:    func() poolBuilder { return newPool() },
	}
	if runs != nil {
		runner.Saver = runs
		s.runs = runs
	}

	go pruneJobs(ctx, s.jobs)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Port).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}

func pruneJobs(ctx context.Context, m *jobs.Manager) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Prune(time.Now().Add(-time.Hour)); n > 0 {
				log.WithField("pruned", n).Debug("pruned finished jobs")
			}
		}
	}
}
