package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://musicbrainz.org/ws/2"
const userAgent = "PlaylistFinder/1.0 (playlistfinder@example.com)"

var log = logrus.WithField("component", "musicbrainz")

var ErrNoArtist = errors.New("musicbrainz: no matching artist")

// -------------------------------------------------------
// Core client
// -------------------------------------------------------

// Client is throttled to one request per Throttle interval, as the
// MusicBrainz web service asks.
type Client struct {
	http     *resty.Client
	Throttle time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
		Throttle: time.Second,
	}
}

func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.last.Add(c.Throttle))
	if wait < 0 {
		wait = 0
	}
	c.last = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, v any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fmt", "json").
		SetQueryParams(query).
		SetResult(v).
		ForceContentType("application/json").
		Get(path)
	if err != nil {
		return fmt.Errorf("musicbrainz %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("musicbrainz %s returned status %d", path, resp.StatusCode())
	}
	return nil
}

// -------------------------------------------------------
// Search Artist by Name
// -------------------------------------------------------

type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Country        string `json:"country"`
	Disambiguation string `json:"disambiguation"`
	Score          int    `json:"score"`
}

func (c *Client) SearchArtist(ctx context.Context, name string) ([]Artist, error) {
	var out struct {
		Artists []Artist `json:"artists"`
	}
	if err := c.get(ctx, "/artist", map[string]string{"query": name, "limit": "5"}, &out); err != nil {
		return nil, err
	}
	return out.Artists, nil
}

// -------------------------------------------------------
// Tags
// -------------------------------------------------------

type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ArtistTags returns the artist's folksonomy tags, most voted first.
func (c *Client) ArtistTags(ctx context.Context, id string) ([]Tag, error) {
	var out struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.get(ctx, "/artist/"+url.PathEscape(id), map[string]string{"inc": "tags"}, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out.Tags, func(i, j int) bool { return out.Tags[i].Count > out.Tags[j].Count })
	return out.Tags, nil
}

// Tags resolves name to the best-matching artist and returns its tag
// names, lower-cased.
func (c *Client) Tags(ctx context.Context, name string) ([]string, error) {
	artists, err := c.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}
	var match *Artist
	for i := range artists {
		if strings.EqualFold(artists[i].Name, name) {
			match = &artists[i]
			break
		}
	}
	if match == nil {
		if len(artists) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoArtist, name)
		}
		match = &artists[0]
	}

	tags, err := c.ArtistTags(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := strings.ToLower(strings.TrimSpace(t.Name)); n != "" {
			out = append(out, n)
		}
	}
	log.WithFields(logrus.Fields{"artist": name, "mbid": match.ID, "tags": len(out)}).Debug("fallback tags")
	return out, nil
}
