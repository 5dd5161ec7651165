package playlistsupply

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Playlist is one search hit whose public URL yielded a canonical id.
type Playlist struct {
	ID           string `json:"id"`
	ServiceID    string `json:"-"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	TracksTotal  string `json:"tracks_total"`
	Followers    string `json:"followers"`
	Email        string `json:"email,omitempty"`
	OwnerName    string `json:"owner_name"`
	OwnerURL     string `json:"owner_url,omitempty"`
	LastModified string `json:"last_modified"`
}

// Parsed is the outcome of inspecting one search response body.
// It is one of ParsedJSON, WrappedJSON, LoginPageDetected, NoResults
// or UnexpectedContent.
type Parsed interface {
	isParsed()
}

// ParsedJSON is a body that decoded as JSON directly.
type ParsedJSON struct {
	Playlists []Playlist
	Dropped   int
}

// WrappedJSON is JSON found after a non-JSON prefix.
type WrappedJSON struct {
	Playlists []Playlist
	Dropped   int
	Offset    int
}

// LoginPageDetected means the service answered with its login page.
type LoginPageDetected struct{}

// NoResults is a non-JSON body that carries no results and no login form.
type NoResults struct{}

// UnexpectedContent is anything else.
type UnexpectedContent struct {
	Snippet string
}

func (ParsedJSON) isParsed()        {}
func (WrappedJSON) isParsed()       {}
func (LoginPageDetected) isParsed() {}
func (NoResults) isParsed()         {}
func (UnexpectedContent) isParsed() {}

var canonicalRe = regexp.MustCompile(`open\.spotify\.com/(?:intl-[A-Za-z-]+/)?playlist/([A-Za-z0-9]+)`)

// CanonicalID extracts the playlist id from a public Spotify playlist URL.
func CanonicalID(rawURL string) (string, bool) {
	m := canonicalRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var noResultsRe = regexp.MustCompile(`(?i)no (results|playlists)`)

// Parse classifies a search response body.
func Parse(body []byte) Parsed {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return NoResults{}
	}

	if json.Valid(trimmed) {
		if pls, dropped, ok := decodeRecords(trimmed); ok {
			return ParsedJSON{Playlists: pls, Dropped: dropped}
		}
		return UnexpectedContent{Snippet: snippet(trimmed)}
	}

	if idx := bytes.IndexAny(body, "{["); idx >= 0 {
		var raw json.RawMessage
		if err := json.NewDecoder(bytes.NewReader(body[idx:])).Decode(&raw); err == nil {
			if pls, dropped, ok := decodeRecords(raw); ok {
				return WrappedJSON{Playlists: pls, Dropped: dropped, Offset: idx}
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return UnexpectedContent{Snippet: snippet(trimmed)}
	}
	if hasLoginForm(doc) {
		return LoginPageDetected{}
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" || noResultsRe.MatchString(text) {
		return NoResults{}
	}
	return UnexpectedContent{Snippet: snippet([]byte(text))}
}

func hasLoginForm(doc *goquery.Document) bool {
	return doc.Find(`form[name="login"], input[name="amember_login"]`).Length() > 0
}

// wrapperKeys are the object keys a result list may be nested under.
var wrapperKeys = []string{"data", "playlists", "results"}

// decodeRecords reports ok=false when data is neither a list nor an
// object wrapping one.
func decodeRecords(data []byte) (out []Playlist, dropped int, ok bool) {
	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, 0, false
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, 0, false
		}
		found := false
		for _, k := range wrapperKeys {
			if v, has := obj[k]; has && json.Unmarshal(v, &items) == nil {
				found = true
				break
			}
		}
		if !found {
			return nil, 0, false
		}
	default:
		return nil, 0, false
	}

	out = make([]Playlist, 0, len(items))
	for _, it := range items {
		p, good := decodePlaylist(it)
		if !good {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return out, dropped, true
}

type record struct {
	ID           flexString `json:"id"`
	Name         flexString `json:"name"`
	URL          flexString `json:"url"`
	Description  flexString `json:"description"`
	TracksTotal  flexString `json:"tracks_total"`
	Followers    flexString `json:"followers"`
	Email        flexString `json:"email"`
	OwnerName    flexString `json:"owner_name"`
	OwnerURL     flexString `json:"owner_url"`
	LastModified flexString `json:"last_modified"`
}

func decodePlaylist(raw json.RawMessage) (Playlist, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Playlist{}, false
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Playlist{}, false
	}
	id, ok := CanonicalID(string(r.URL))
	if !ok {
		return Playlist{}, false
	}
	return Playlist{
		ID:           id,
		ServiceID:    string(r.ID),
		Name:         orDefault(string(r.Name), "N/A"),
		URL:          string(r.URL),
		Description:  string(r.Description),
		TracksTotal:  orDefault(string(r.TracksTotal), "N/A"),
		Followers:    orDefault(string(r.Followers), "N/A"),
		Email:        string(r.Email),
		OwnerName:    orDefault(string(r.OwnerName), "N/A"),
		OwnerURL:     string(r.OwnerURL),
		LastModified: orDefault(string(r.LastModified), "unknown"),
	}, true
}

// flexString accepts a JSON string, number or bool. Anything else decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	case 't', 'f':
		*f = flexString(b)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*f = flexString(integerText(json.Number(b)))
	}
	return nil
}

// integerText renders a JSON number as an integer, truncating any
// fraction, so counts like 1600.0 stay parseable.
func integerText(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func snippet(b []byte) string {
	const max = 120
	s := strings.Join(strings.Fields(string(b)), " ")
	if r := []rune(s); len(r) > max {
		s = string(r[:max]) + "..."
	}
	return s
}
