package keywords

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Jonnymurillo288/PlaylistFinder/tracklist"
)

var ErrNoKeywords = errors.New("no keywords available for searching")

const (
	MaxGenres = 5
	MaxTags   = 10
)

// Input is everything a keyword set is derived from. The track fields
// are optional.
type Input struct {
	ArtistName string
	Genres     []string
	Tags       []string
	PoolNames  []string
	UserCSV    string

	TrackName   string
	TrackArtist string
}

// Normalize NFC-normalizes, lower-cases and collapses whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(norm.NFC.String(s)), " "))
}

// SplitCSV returns the trimmed, non-empty comma-separated tokens of s.
func SplitCSV(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Synthesize builds the sorted, duplicate-free keyword set for a run.
func Synthesize(in Input) ([]string, error) {
	set := map[string]struct{}{}
	add := func(vals ...string) {
		for _, v := range vals {
			if k := Normalize(v); k != "" {
				set[k] = struct{}{}
			}
		}
	}

	add(in.ArtistName)
	add(head(in.Genres, MaxGenres)...)
	add(head(in.Tags, MaxTags)...)
	add(in.PoolNames...)
	add(SplitCSV(in.UserCSV)...)

	if in.TrackName != "" && in.TrackArtist != "" {
		add(in.TrackArtist, in.TrackName+" "+in.TrackArtist)
		add(tracklist.FeaturedArtists(in.TrackName)...)
	}

	if len(set) == 0 {
		return nil, ErrNoKeywords
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
