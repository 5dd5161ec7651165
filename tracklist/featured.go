package tracklist

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

var (
	reFeatBracket  = regexp.MustCompile(`(?i)[(\[]\s*(?:feat\.?|ft\.?|featuring|with)\s+([^)\]]+)[)\]]`)
	reFeatTrailing = regexp.MustCompile(`(?i)\s(?:feat\.?|ft\.?|featuring)\s+([^(\[]+)`)
	reNameSplit    = regexp.MustCompile(`(?i)\s*(?:,|&|\band\b|\sx\s)\s*`)
)

// FeaturedArtists pulls guest artist names out of a track title such as
// "Song (feat. A & B)". It is a best-effort heuristic.
func FeaturedArtists(title string) []string {
	var raw []string
	for _, m := range reFeatBracket.FindAllStringSubmatch(title, -1) {
		raw = append(raw, m[1])
	}
	if len(raw) == 0 {
		if m := reFeatTrailing.FindStringSubmatch(title); m != nil {
			raw = append(raw, m[1])
		}
	}

	var out []string
	for _, chunk := range raw {
		for _, name := range reNameSplit.Split(chunk, -1) {
			name = strings.TrimSpace(name)
			if name == "" || nameSeen(out, name) {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}

func nameSeen(names []string, name string) bool {
	n := strings.ToLower(stripDiacritics(name))
	for _, have := range names {
		if levenshtein.Similarity(strings.ToLower(stripDiacritics(have)), n, nil) >= DefaultThreshold {
			return true
		}
	}
	return false
}
