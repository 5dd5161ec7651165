package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
	"github.com/Jonnymurillo288/PlaylistFinder/lastfm"
	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, spotify.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, spotify.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// GET /api/artists/search?q=
func (s *server) artistSearchHandler(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	ctx := c.Request.Context()

	hits, err := s.catalog.SearchArtists(ctx, q, 1)
	if err != nil {
		log.WithError(err).WithField("q", q).Warn("artist search failed")
		c.JSON(catalogStatus(err), gin.H{"error": "search failed"})
		return
	}
	if len(hits) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no artist found"})
		return
	}
	artist, err := s.catalog.Artist(ctx, hits[0].ID)
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": "artist lookup failed"})
		return
	}

	scraper := s.newScraper()
	tags, err := discovery.FallbackTags{Primary: scraper, Secondary: s.mb}.Tags(ctx, artist.Name)
	if err != nil {
		log.WithError(err).WithField("artist", artist.Name).Info("no tags")
	}
	events, err := scraper.Events(ctx, artist.Name)
	if err != nil {
		log.WithError(err).WithField("artist", artist.Name).Info("no events")
	}

	c.JSON(http.StatusOK, artistDetails{
		Artist: artist,
		Tags:   nonNil(tags),
		Events: nonNilEvents(events),
	})
}

// GET /api/artists/:id/releases
func (s *server) artistReleasesHandler(c *gin.Context) {
	releases, err := s.catalog.ArtistReleases(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.WithError(err).Warn("artist releases failed")
		c.JSON(catalogStatus(err), gin.H{"error": "releases lookup failed"})
		return
	}
	if releases == nil {
		releases = []spotify.Release{}
	}
	c.JSON(http.StatusOK, gin.H{"releases": releases})
}

// GET /api/artists/:id/similar?min_followers=&max_followers=&min_popularity=&max_popularity=&page=
func (s *server) artistSimilarHandler(c *gin.Context) {
	b, err := boundsFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page := 1
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
	}

	ctx := c.Request.Context()
	artist, err := s.catalog.Artist(ctx, c.Param("id"))
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": "artist lookup failed"})
		return
	}
	similar, err := s.newPool().Build(ctx, artist)
	if err != nil {
		log.WithError(err).WithField("artist", artist.Name).Warn("similar pool incomplete")
	}

	c.JSON(http.StatusOK, similarResponse{
		Artist:  artist,
		Similar: rank.Rank(similar, b, page, rank.DefaultPageSize),
	})
}

func boundsFromQuery(c *gin.Context) (rank.Bounds, error) {
	var b rank.Bounds
	for _, f := range []struct {
		key string
		dst **int
	}{
		{"min_followers", &b.MinFollowers},
		{"max_followers", &b.MaxFollowers},
		{"min_popularity", &b.MinPopularity},
		{"max_popularity", &b.MaxPopularity},
	} {
		v := c.Query(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return rank.Bounds{}, fmt.Errorf("%s must be an integer", f.key)
		}
		*f.dst = &n
	}
	return b, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilEvents(e []lastfm.Event) []lastfm.Event {
	if e == nil {
		return []lastfm.Event{}
	}
	return e
}
