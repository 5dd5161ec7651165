package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/auth"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/jobs"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/store"
	"github.com/Jonnymurillo288/PlaylistFinder/lastfm"
	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

type artistCatalog interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]spotify.Artist, error)
	Artist(ctx context.Context, id string) (spotify.Artist, error)
	ArtistReleases(ctx context.Context, artistID string) ([]spotify.Release, error)
}

type poolBuilder interface {
	Build(ctx context.Context, source spotify.Artist) ([]spotify.Artist, error)
}

type runLoader interface {
	LoadRun(ctx context.Context, id string) (*store.Run, error)
}

type server struct {
	tokens  auth.TokenService
	jobs    *jobs.Manager
	runner  *discovery.Runner
	catalog artistCatalog
	// runs is nil when persistence is disabled.
	runs runLoader

	mb         discovery.TagSource
	newScraper func() *lastfm.Scraper
	newPool    func() poolBuilder
}

const tokenHeader = "X-PF-Token"

// tokenAuth enforces the short-lived anti-scrape token on API routes.
// EventSource and WebSocket clients cannot set headers, so the token is
// also accepted as a query parameter.
func tokenAuth(tokens auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := c.GetHeader(tokenHeader)
		if tok == "" {
			tok = c.Query("token")
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if _, err := tokens.Parse(tok); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Info("request")
	}
}

func newRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/api/token", s.tokenHandler)

	// --- PROTECTED ROUTES ---
	api := router.Group("/api")
	api.Use(tokenAuth(s.tokens))

	api.GET("/discover/stream", s.discoverStreamHandler)
	api.GET("/discover/ws", s.discoverWSHandler)
	api.GET("/discover/status", s.discoverStatusHandler)
	api.DELETE("/discover/:id", s.discoverCancelHandler)
	api.GET("/discover/runs/:id", s.discoverRunHandler)

	api.POST("/playlists/rank", rankPlaylistsHandler)

	api.GET("/artists/search", s.artistSearchHandler)
	api.GET("/artists/:id/releases", s.artistReleasesHandler)
	api.GET("/artists/:id/similar", s.artistSimilarHandler)

	return router
}

// GET /api/token
func (s *server) tokenHandler(c *gin.Context) {
	tok, exp, err := s.tokens.Sign()
	if err != nil {
		log.WithError(err).Error("sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "expires_at": exp.UTC()})
}
