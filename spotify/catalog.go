package spotify

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jonnymurillo288/PlaylistFinder/tracklist"
)

const (
	// MaxSearchLimit is the largest page the search endpoint returns.
	MaxSearchLimit = 50
	albumBatchSize = 20
	albumPageSize  = 50
)

// ========================================================== //
// Artists and tracks

func (c *Client) Artist(ctx context.Context, id string) (Artist, error) {
	var a apiArtist
	if err := c.get(ctx, "/artists/"+url.PathEscape(id), nil, &a); err != nil {
		return Artist{}, err
	}
	return a.toArtist(), nil
}

func (c *Client) Track(ctx context.Context, id string) (Track, error) {
	var t apiTrack
	if err := c.get(ctx, "/tracks/"+url.PathEscape(id), nil, &t); err != nil {
		return Track{}, err
	}
	return t.toTrack(), nil
}

// SearchArtists runs a free-text artist search. limit is clamped to 1..50.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	limit = max(1, min(limit, MaxSearchLimit))
	params := url.Values{
		"q":     {query},
		"type":  {"artist"},
		"limit": {strconv.Itoa(limit)},
	}

	var out struct {
		Artists struct {
			Items []apiArtist `json:"items"`
		} `json:"artists"`
	}
	if err := c.get(ctx, "/search", params, &out); err != nil {
		return nil, fmt.Errorf("search artists %q: %w", query, err)
	}

	artists := make([]Artist, 0, len(out.Artists.Items))
	for _, a := range out.Artists.Items {
		if a.ID == "" {
			continue
		}
		artists = append(artists, a.toArtist())
	}
	return artists, nil
}

// SearchArtistsByGenre searches with a genre:"<name>" filter.
func (c *Client) SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]Artist, error) {
	return c.SearchArtists(ctx, `genre:"`+genre+`"`, limit)
}

// ========================================================== //
// Albums and releases

// ArtistAlbums lists every album and single the artist appears on as
// album artist, following pagination.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string) ([]Album, error) {
	var all []Album
	next := "/artists/" + url.PathEscape(artistID) + "/albums"
	params := url.Values{
		"include_groups": {"album,single"},
		"limit":          {strconv.Itoa(albumPageSize)},
	}

	for next != "" {
		var page struct {
			Items []apiAlbum `json:"items"`
			Next  *string    `json:"next"`
		}
		if err := c.get(ctx, next, params, &page); err != nil {
			return all, fmt.Errorf("artist albums %s: %w", artistID, err)
		}
		for _, a := range page.Items {
			al := Album{ID: a.ID, Name: a.Name, AlbumType: a.AlbumType, ReleaseDate: a.ReleaseDate}
			for _, ar := range a.Artists {
				al.Artists = append(al.Artists, ar.toArtist())
			}
			all = append(all, al)
		}

		next, params = "", nil
		if page.Next != nil {
			next = *page.Next
		}
	}
	return all, nil
}

// Albums fetches full album details in batches of 20, following each
// album's track pagination.
func (c *Client) Albums(ctx context.Context, ids []string) ([]Release, error) {
	var out []Release
	for start := 0; start < len(ids); start += albumBatchSize {
		end := min(start+albumBatchSize, len(ids))
		batch := ids[start:end]

		var resp struct {
			Albums []*apiAlbum `json:"albums"`
		}
		if err := c.get(ctx, "/albums", url.Values{"ids": {strings.Join(batch, ",")}}, &resp); err != nil {
			return out, fmt.Errorf("albums batch %d: %w", start/albumBatchSize, err)
		}

		for _, a := range resp.Albums {
			if a == nil {
				continue
			}
			rel := Release{
				ID:          a.ID,
				Name:        a.Name,
				AlbumType:   a.AlbumType,
				ReleaseDate: a.ReleaseDate,
				ImageURL:    firstImage(a.Images),
			}
			items := a.Tracks.Items
			next := a.Tracks.Next
			for next != nil && *next != "" {
				var page struct {
					Items []apiTrack `json:"items"`
					Next  *string    `json:"next"`
				}
				if err := c.get(ctx, *next, nil, &page); err != nil {
					log.WithFields(logrus.Fields{"album": a.ID}).WithError(err).Warn("stopped paging album tracks")
					break
				}
				items = append(items, page.Items...)
				next = page.Next
			}
			for _, t := range items {
				rel.Tracks = append(rel.Tracks, toListTrack(t, rel))
			}
			out = append(out, rel)
		}
	}
	return out, nil
}

func toListTrack(t apiTrack, rel Release) tracklist.Track {
	lt := tracklist.Track{
		ID:         t.ID,
		Name:       t.Name,
		ReleaseID:  rel.ID,
		ImageURL:   rel.ImageURL,
		DurationMS: t.DurationMS,
	}
	for _, a := range t.Artists {
		lt.Artists = append(lt.Artists, a.Name)
	}
	return lt
}

// ArtistReleases returns the releases where artistID is the first credited
// artist, newest first. A song that appears on several releases is listed
// only on the newest one.
func (c *Client) ArtistReleases(ctx context.Context, artistID string) ([]Release, error) {
	albums, err := c.ArtistAlbums(ctx, artistID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, a := range albums {
		if len(a.Artists) > 0 && a.Artists[0].ID == artistID {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return []Release{}, nil
	}

	releases, err := c.Albums(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].ReleaseDate > releases[j].ReleaseDate
	})

	var flat []tracklist.Track
	for _, r := range releases {
		flat = append(flat, r.Tracks...)
	}
	kept := tracklist.DeduplicateTracks(flat, tracklist.DefaultThreshold)

	byRelease := map[string][]tracklist.Track{}
	for _, t := range kept {
		byRelease[t.ReleaseID] = append(byRelease[t.ReleaseID], t)
	}

	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		r.Tracks = byRelease[r.ID]
		if len(r.Tracks) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}
