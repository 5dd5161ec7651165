package playlistsupply

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
)

func TestCanonicalID(t *testing.T) {
	cases := map[string]string{
		"https://open.spotify.com/playlist/37i9dQZF1DX0XUsuxWHRQd":                "37i9dQZF1DX0XUsuxWHRQd",
		"https://open.spotify.com/playlist/37i9dQZF1DX0XUsuxWHRQd?si=abc123&pt=1": "37i9dQZF1DX0XUsuxWHRQd",
		"http://open.spotify.com/intl-de/playlist/4rOoJ6Egrf8K2IrywzwOMk":         "4rOoJ6Egrf8K2IrywzwOMk",
	}
	for in, want := range cases {
		got, ok := CanonicalID(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"", "https://open.spotify.com/album/abc", "https://example.com/playlist/abc", "spotify:playlist:abc"} {
		_, ok := CanonicalID(bad)
		require.False(t, ok, bad)
	}
}

func TestParse_DirectJSON(t *testing.T) {
	body := `[
		{"id": 11, "name": "Night Drive", "url": "https://open.spotify.com/playlist/AAA111", "followers": 1600, "tracks_total": "45", "owner_name": "dj"},
		{"id": 12, "name": "Broken", "url": "https://example.com/x"},
		"not an object",
		{"id": 13, "url": "https://open.spotify.com/playlist/BBB222?si=zz", "followers": "5.2k", "email": null}
	]`

	p, ok := Parse([]byte(body)).(ParsedJSON)
	require.True(t, ok)
	require.Equal(t, 2, p.Dropped)
	require.Len(t, p.Playlists, 2)

	first := p.Playlists[0]
	require.Equal(t, "AAA111", first.ID)
	require.Equal(t, "11", first.ServiceID)
	require.Equal(t, "1600", first.Followers)
	require.Equal(t, "45", first.TracksTotal)
	require.Equal(t, "unknown", first.LastModified)

	second := p.Playlists[1]
	require.Equal(t, "BBB222", second.ID)
	require.Equal(t, "N/A", second.Name)
	require.Equal(t, "5.2k", second.Followers)
	require.Empty(t, second.Email)
}

func TestParse_WrappedJSON(t *testing.T) {
	body := "<br />\n<b>Notice</b>: Undefined index<br />\n" +
		`[{"id":"x","name":"Late","url":"https://open.spotify.com/playlist/CCC333"}]`

	p, ok := Parse([]byte(body)).(WrappedJSON)
	require.True(t, ok)
	require.Greater(t, p.Offset, 0)
	require.Len(t, p.Playlists, 1)
	require.Equal(t, "CCC333", p.Playlists[0].ID)
}

func TestParse_ObjectWrapper(t *testing.T) {
	body := `{"data":[{"url":"https://open.spotify.com/playlist/DDD444"}]}`
	p, ok := Parse([]byte(body)).(ParsedJSON)
	require.True(t, ok)
	require.Len(t, p.Playlists, 1)

	_, ok = Parse([]byte(`{"error":"quota"}`)).(UnexpectedContent)
	require.True(t, ok)
}

func TestParse_EmptyList(t *testing.T) {
	p, ok := Parse([]byte(`[]`)).(ParsedJSON)
	require.True(t, ok)
	require.Empty(t, p.Playlists)
}

func TestParse_HTMLCases(t *testing.T) {
	login := `<html><body><form name="login" method="post"><input name="amember_login"></form></body></html>`
	_, ok := Parse([]byte(login)).(LoginPageDetected)
	require.True(t, ok, "login form")

	_, ok = Parse([]byte("   \n")).(NoResults)
	require.True(t, ok, "blank body")

	_, ok = Parse([]byte(`<div class="msg">No results found for this keyword</div>`)).(NoResults)
	require.True(t, ok, "no results marker")

	u, ok := Parse([]byte(`<html><body><h1>502 Bad Gateway</h1></body></html>`)).(UnexpectedContent)
	require.True(t, ok, "other html")
	require.Contains(t, u.Snippet, "Bad Gateway")
}

func TestParse_LoginPageWithInlineScript(t *testing.T) {
	body := `<html><head><style>body{margin:0}</style><script>var cfg = {a: 1};</script></head>
<body><form name="login"><input name="amember_login"></form></body></html>`
	_, ok := Parse([]byte(body)).(LoginPageDetected)
	require.True(t, ok)
}

func TestParse_FloatCountsBecomeIntegers(t *testing.T) {
	body := `[{"url": "https://open.spotify.com/playlist/FFF000", "followers": 1600.0, "tracks_total": 12.7}]`

	p, ok := Parse([]byte(body)).(ParsedJSON)
	require.True(t, ok)
	require.Len(t, p.Playlists, 1)
	require.Equal(t, "1600", p.Playlists[0].Followers)
	require.Equal(t, "12", p.Playlists[0].TracksTotal)

	n, ok := rank.ParseFollowers(p.Playlists[0].Followers)
	require.True(t, ok)
	require.Equal(t, 1600, n)
}

func TestSnippet_CutsOnRuneBoundary(t *testing.T) {
	s := snippet([]byte(strings.Repeat("é", 200)))
	require.True(t, utf8.ValidString(s))
	require.Equal(t, strings.Repeat("é", 120)+"...", s)
}
