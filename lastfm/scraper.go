// Package lastfm scrapes artist pages on last.fm for similar artists,
// tags and upcoming events.
package lastfm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "lastfm")

// ErrBlocked is returned when the first page answers 406 Not Acceptable.
var ErrBlocked = errors.New("lastfm blocked the request (406)")

const DefaultBaseURL = "https://www.last.fm"

type Scraper struct {
	client *resty.Client

	// Each page request waits a random time in [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration
}

func New(baseURL string) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(20*time.Second).
		SetHeaders(map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		})
	return &Scraper{client: client, MinDelay: time.Second, MaxDelay: 3 * time.Second}
}

func (s *Scraper) wait(ctx context.Context) error {
	d := s.MinDelay
	if s.MaxDelay > s.MinDelay {
		d += time.Duration(rand.Int63n(int64(s.MaxDelay - s.MinDelay)))
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

func artistPath(name, section string) string {
	return "/music/" + url.QueryEscape(name) + "/" + section
}

// fetch returns the status code and, for 2xx responses, the parsed page.
func (s *Scraper) fetch(ctx context.Context, path string, query map[string]string) (int, *goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).SetQueryParams(query).Get(path)
	if err != nil {
		return 0, nil, fmt.Errorf("get %s: %w", path, err)
	}
	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return code, nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return code, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return code, doc, nil
}

// ========================================================== //
// Similar artists

// SimilarArtistNames collects similar-artist names across up to maxPages
// pages, in the order they first appear. Pagination ends on 404, a
// missing result list, or a later page with nothing new. A 406 or any
// other failure on page 1 returns an error; on later pages it just ends
// pagination.
func (s *Scraper) SimilarArtistNames(ctx context.Context, artist string, maxPages int) ([]string, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return []string{}, nil
	}
	l := log.WithField("artist", artist)

	seen := map[string]struct{}{}
	names := []string{}
	path := artistPath(artist, "+similar")

	for page := 1; page <= maxPages; page++ {
		if err := s.wait(ctx); err != nil {
			return names, err
		}
		pl := l.WithField("page", page)

		code, doc, err := s.fetch(ctx, path, map[string]string{"page": fmt.Sprint(page)})
		switch {
		case err != nil:
			if page == 1 {
				return nil, err
			}
			pl.WithError(err).Warn("stopping pagination")
			return names, nil
		case code == http.StatusNotFound:
			pl.Debug("404, end of results")
			return names, nil
		case code == http.StatusNotAcceptable:
			if page == 1 {
				return nil, ErrBlocked
			}
			pl.Warn("406 on later page, stopping pagination")
			return names, nil
		case doc == nil:
			if page == 1 {
				return nil, fmt.Errorf("similar artists for %q: HTTP %d", artist, code)
			}
			pl.WithField("status", code).Warn("stopping pagination")
			return names, nil
		}

		list := doc.Find("ol.similar-artists").First()
		if list.Length() == 0 {
			if notEnoughData(doc) {
				pl.Info("not enough data for similar artists")
			} else {
				pl.Debug("no similar artists list on page")
			}
			return names, nil
		}

		added := 0
		list.ChildrenFiltered("li.similar-artists-item-wrap").Each(func(_ int, item *goquery.Selection) {
			if item.Find("div[data-ad-container]").Length() > 0 {
				return
			}
			name := strings.TrimSpace(item.Find("div.similar-artists-item h3.similar-artists-item-name a.link-block-target").First().Text())
			if name == "" || strings.EqualFold(name, artist) {
				return
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			names = append(names, name)
			added++
		})

		pl.WithField("added", added).Debug("scraped similar artists page")
		if added == 0 && page > 1 {
			return names, nil
		}
	}
	return names, nil
}

func notEnoughData(doc *goquery.Document) bool {
	found := false
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if strings.Contains(p.Text(), "We don't have enough data") {
			found = true
		}
		return !found
	})
	return found
}

// ========================================================== //
// Tags

// Tags returns the artist's top tags, lower-cased. 404 and 406 yield none.
func (s *Scraper) Tags(ctx context.Context, artist string) ([]string, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return []string{}, nil
	}
	code, doc, err := s.fetch(ctx, artistPath(artist, "+tags"), nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound || code == http.StatusNotAcceptable {
		log.WithFields(logrus.Fields{"artist": artist, "status": code}).Debug("no tags")
		return []string{}, nil
	}
	if doc == nil {
		return nil, fmt.Errorf("tags for %q: HTTP %d", artist, code)
	}

	tags := []string{}
	doc.Find("ol.big-tags li.big-tags-item-wrap div.big-tags-item h3.big-tags-item-name a.link-block-target").Each(func(_ int, a *goquery.Selection) {
		if t := strings.ToLower(strings.TrimSpace(a.Text())); t != "" {
			tags = append(tags, t)
		}
	})
	return tags, nil
}

// ========================================================== //
// Events

type Event struct {
	Date      string `json:"date"`
	DateTime  string `json:"datetime,omitempty"`
	Title     string `json:"title"`
	Venue     string `json:"venue"`
	Location  string `json:"location"`
	URL       string `json:"url,omitempty"`
	Attendees string `json:"attendees"`
}

// Events lists upcoming events. 404 and 406 yield none.
func (s *Scraper) Events(ctx context.Context, artist string) ([]Event, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return []Event{}, nil
	}
	code, doc, err := s.fetch(ctx, artistPath(artist, "+events"), nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound || code == http.StatusNotAcceptable {
		return []Event{}, nil
	}
	if doc == nil {
		return nil, fmt.Errorf("events for %q: HTTP %d", artist, code)
	}

	base := strings.TrimSuffix(s.client.BaseURL, "/")
	events := []Event{}
	doc.Find("section#events-section tr.events-list-item").Each(func(_ int, row *goquery.Selection) {
		ev := Event{Date: "N/A", Title: "N/A", Venue: "N/A", Location: "N/A", Attendees: "N/A"}

		date := row.Find("td.events-list-item-date")
		month := strings.TrimSpace(date.Find("span.events-list-item-date-icon-month").Text())
		day := strings.TrimSpace(date.Find("span.events-list-item-date-icon-day").Text())
		if month != "" && day != "" {
			ev.Date = month + " " + day
		}
		ev.DateTime, _ = date.Find("time").Attr("datetime")

		link := row.Find("td.events-list-item-event a.events-list-item-event-name").First()
		if link.Length() > 0 {
			title := strings.TrimSpace(link.Find(`span[itemprop="name"]`).Text())
			if title == "" {
				title = strings.TrimSpace(link.Text())
			}
			if title != "" {
				ev.Title = title
			}
			if href, ok := link.Attr("href"); ok {
				if strings.HasPrefix(href, "/") {
					href = base + href
				}
				ev.URL = href
			}
		}

		venue := row.Find("td.events-list-item-venue")
		if v := strings.TrimSpace(venue.Find("div.events-list-item-venue--title").Text()); v != "" {
			ev.Venue = v
		}
		if v := strings.TrimSpace(venue.Find("div.events-list-item-venue--address").Text()); v != "" {
			ev.Location = v
		}

		attendees := row.Find("td.events-list-item-attendees")
		var parts []string
		attendees.Find("a").Each(func(_ int, a *goquery.Selection) {
			if t := strings.TrimSpace(a.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			ev.Attendees = strings.Join(parts, " · ")
		} else if t := strings.TrimSpace(attendees.Text()); t != "" {
			ev.Attendees = t
		}

		if ev.Title != "N/A" {
			events = append(events, ev)
		}
	})
	return events, nil
}
