package discovery

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/playlistsupply"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]playlistsupply.Playlist
	errs    map[string]error
	calls   []string
	onCall  func(kw string)
}

func (f *fakeSearcher) Search(_ context.Context, kw string) ([]playlistsupply.Playlist, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kw)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(kw)
	}
	if err := f.errs[kw]; err != nil {
		return nil, err
	}
	return f.results[kw], nil
}

func pl(id, followers string) playlistsupply.Playlist {
	return playlistsupply.Playlist{
		Name:      "Playlist " + id,
		URL:       "https://open.spotify.com/playlist/" + id,
		Followers: followers,
	}
}

func TestDiscover_MergesAndTracksFoundBy(t *testing.T) {
	s := &fakeSearcher{results: map[string][]playlistsupply.Playlist{
		"a": {pl("P1", "10"), pl("P2", "20")},
		"b": {pl("P2", "20")},
	}}
	var seen []int
	res := NewEngine(Options{}).Discover(context.Background(), []string{"a", "b", "a"}, s, func(done, total int, _ string) {
		require.Equal(t, 3, total)
		seen = append(seen, done)
	})

	require.NoError(t, res.FatalError)
	require.False(t, res.HadPartialErrors)
	require.Equal(t, 3, res.Attempted)
	require.Equal(t, []int{1, 2, 3}, seen)
	require.Len(t, res.Playlists, 2)
	require.Equal(t, []string{"a"}, res.Playlists["P1"].FoundBy())
	require.Equal(t, []string{"a", "b"}, res.Playlists["P2"].FoundBy())

	views := res.Views()
	require.Equal(t, "P1", views[0].ID)
	require.Equal(t, "P2", views[1].ID)
}

func TestDiscover_IdentityFromURL(t *testing.T) {
	first := pl("XYZ", "5")
	first.ServiceID = "svc-1"
	second := playlistsupply.Playlist{
		ServiceID: "svc-2",
		Name:      "Same list",
		URL:       "https://open.spotify.com/intl-de/playlist/XYZ?si=tracking",
	}
	bad := playlistsupply.Playlist{ServiceID: "svc-3", URL: "https://example.com/nope"}

	s := &fakeSearcher{results: map[string][]playlistsupply.Playlist{
		"a": {first},
		"b": {second, bad},
	}}
	res := NewEngine(Options{}).Discover(context.Background(), []string{"a", "b"}, s, nil)

	require.Len(t, res.Playlists, 1)
	c := res.Playlists["XYZ"]
	require.Equal(t, "XYZ", c.ID)
	require.Equal(t, "Playlist XYZ", c.Name, "first sighting keeps its fields")
	require.Equal(t, []string{"a", "b"}, c.FoundBy())
}

func TestDiscover_RecoverableErrorsArePartial(t *testing.T) {
	s := &fakeSearcher{
		results: map[string][]playlistsupply.Playlist{"c": {pl("P3", "1")}},
		errs: map[string]error{
			"a": fmt.Errorf("%w: timeout", playlistsupply.ErrRecoverable),
			"b": fmt.Errorf("%w: HTTP 500", playlistsupply.ErrRecoverable),
		},
	}
	res := NewEngine(Options{}).Discover(context.Background(), []string{"a", "b", "c"}, s, nil)

	require.NoError(t, res.FatalError)
	require.True(t, res.HadPartialErrors)
	require.Equal(t, []string{"a", "b", "c"}, s.calls)
	require.Contains(t, res.Playlists, "P3")
}

func TestDiscover_SessionInvalidStopsLoop(t *testing.T) {
	s := &fakeSearcher{
		results: map[string][]playlistsupply.Playlist{"a": {pl("P1", "1")}},
		errs:    map[string]error{"b": fmt.Errorf("%w: 403", playlistsupply.ErrSessionInvalid)},
	}
	res := NewEngine(Options{}).Discover(context.Background(), []string{"a", "b", "c", "d"}, s, nil)

	require.ErrorIs(t, res.FatalError, playlistsupply.ErrSessionInvalid)
	require.Equal(t, []string{"a", "b"}, s.calls)
	require.Equal(t, 2, res.Attempted)
}

func TestDiscover_CancelStopsNewKeywords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeSearcher{onCall: func(kw string) {
		if kw == "b" {
			cancel()
		}
	}}
	res := NewEngine(Options{}).Discover(ctx, []string{"a", "b", "c"}, s, nil)

	require.ErrorIs(t, res.FatalError, context.Canceled)
	require.Equal(t, []string{"a", "b"}, s.calls)
}

func TestDiscover_EmptyKeywords(t *testing.T) {
	res := NewEngine(Options{}).Discover(context.Background(), nil, &fakeSearcher{}, nil)
	require.NoError(t, res.FatalError)
	require.Empty(t, res.Views())
}

func TestDiscoverConcurrent_MergesEverything(t *testing.T) {
	kws := make([]string, 20)
	results := map[string][]playlistsupply.Playlist{}
	for i := range kws {
		kws[i] = fmt.Sprintf("k%02d", i)
		results[kws[i]] = []playlistsupply.Playlist{pl("Shared", "1"), pl(fmt.Sprintf("P%d", i), "1")}
	}
	s := &fakeSearcher{results: results}

	var mu sync.Mutex
	var seen []int
	res := NewEngine(Options{Workers: 4}).Discover(context.Background(), kws, s, func(done, _ int, _ string) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
	})

	require.NoError(t, res.FatalError)
	require.Equal(t, 20, res.Attempted)
	require.Len(t, res.Playlists, 21)
	require.Len(t, res.Playlists["Shared"].FoundBy(), 20)
	for i := range seen {
		require.Equal(t, i+1, seen[i], "progress counts must be monotonic")
	}
}

func TestDiscoverConcurrent_SessionInvalidIsFatal(t *testing.T) {
	s := &fakeSearcher{errs: map[string]error{
		"a": fmt.Errorf("%w: expired", playlistsupply.ErrSessionInvalid),
	}}
	res := NewEngine(Options{Workers: 2}).Discover(context.Background(), []string{"a", "b", "c"}, s, nil)

	require.ErrorIs(t, res.FatalError, playlistsupply.ErrSessionInvalid)
}

func TestFallbackTags(t *testing.T) {
	primary := tagFunc(func(string) ([]string, error) { return nil, fmt.Errorf("blocked") })
	secondary := tagFunc(func(string) ([]string, error) { return []string{"idm"}, nil })

	tags, err := FallbackTags{Primary: primary, Secondary: secondary}.Tags(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []string{"idm"}, tags)

	empty := tagFunc(func(string) ([]string, error) { return nil, nil })
	tags, err = FallbackTags{Primary: empty, Secondary: secondary}.Tags(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []string{"idm"}, tags)

	ok := tagFunc(func(string) ([]string, error) { return []string{"retro"}, nil })
	tags, err = FallbackTags{Primary: ok, Secondary: secondary}.Tags(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []string{"retro"}, tags)
}

type tagFunc func(string) ([]string, error)

func (f tagFunc) Tags(_ context.Context, artist string) ([]string, error) { return f(artist) }
