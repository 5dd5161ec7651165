package spotify

import "github.com/Jonnymurillo288/PlaylistFinder/tracklist"

// Artist is a catalog artist. Followers is nil when the API omitted it.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  *int     `json:"followers,omitempty"`
	URL        string   `json:"url,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
}

func (a Artist) FollowerCount() (int, bool) {
	if a.Followers == nil {
		return 0, false
	}
	return *a.Followers, true
}

func (a Artist) PopularityScore() (int, bool) { return a.Popularity, true }

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	AlbumID    string   `json:"album_id,omitempty"`
	AlbumName  string   `json:"album_name,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	DurationMS int      `json:"duration_ms"`
}

// PrimaryArtist returns the first credited artist, if any.
func (t Track) PrimaryArtist() (Artist, bool) {
	if len(t.Artists) == 0 {
		return Artist{}, false
	}
	return t.Artists[0], true
}

// Album is an entry of an artist's discography listing.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AlbumType   string   `json:"album_type"`
	ReleaseDate string   `json:"release_date"`
	Artists     []Artist `json:"artists"`
}

// Release is an album or single with its tracks.
type Release struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	AlbumType   string            `json:"album_type"`
	ReleaseDate string            `json:"release_date"`
	ImageURL    string            `json:"image_url,omitempty"`
	Tracks      []tracklist.Track `json:"tracks"`
}

// ========================================================== //
// Wire shapes

type apiImage struct {
	URL string `json:"url"`
}

type apiArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  *struct {
		Total *int `json:"total"`
	} `json:"followers"`
	ExternalURLs map[string]string `json:"external_urls"`
	Images       []apiImage        `json:"images"`
}

func (a apiArtist) toArtist() Artist {
	out := Artist{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		URL:        a.ExternalURLs["spotify"],
		ImageURL:   firstImage(a.Images),
	}
	if out.Genres == nil {
		out.Genres = []string{}
	}
	if a.Followers != nil && a.Followers.Total != nil {
		n := *a.Followers.Total
		out.Followers = &n
	}
	return out
}

type apiTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	DurationMS int         `json:"duration_ms"`
	Artists    []apiArtist `json:"artists"`
	Album      *struct {
		ID     string     `json:"id"`
		Name   string     `json:"name"`
		Images []apiImage `json:"images"`
	} `json:"album"`
}

func (t apiTrack) toTrack() Track {
	out := Track{ID: t.ID, Name: t.Name, DurationMS: t.DurationMS}
	for _, a := range t.Artists {
		out.Artists = append(out.Artists, a.toArtist())
	}
	if t.Album != nil {
		out.AlbumID = t.Album.ID
		out.AlbumName = t.Album.Name
		out.ImageURL = firstImage(t.Album.Images)
	}
	return out
}

type apiAlbum struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	AlbumType   string      `json:"album_type"`
	ReleaseDate string      `json:"release_date"`
	Artists     []apiArtist `json:"artists"`
	Images      []apiImage  `json:"images"`
	Tracks      struct {
		Items []apiTrack `json:"items"`
		Next  *string    `json:"next"`
	} `json:"tracks"`
}

func firstImage(imgs []apiImage) string {
	if len(imgs) == 0 {
		return ""
	}
	return imgs[0].URL
}
