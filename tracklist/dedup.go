package tracklist

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

var log = logrus.WithField("component", "tracklist")

// DefaultThreshold is the fuzzy similarity above which two titles are
// treated as the same song.
const DefaultThreshold = 0.9

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ReleaseID  string   `json:"release_id,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Artists    []string `json:"artists,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
}

// ------------------------------------
// Versioning / mix / noise info
// ------------------------------------

var versionNoise = []string{
	"album version",
	"single version",
	"radio edit",
	"clean edit",
	"clean version",
	"explicit version",
	"explicit",
	"remastered",
	"remaster",
	"original mix",
	"mono version",
	"stereo version",
	"official video",
}

func stripVersionTags(s string) string {
	for _, tag := range versionNoise {
		if strings.Contains(s, tag) {
			s = strings.ReplaceAll(s, tag, " ")
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// ------------------------------------
// Normalizations
// ------------------------------------

var (
	reFeatClause       = regexp.MustCompile(`(?i)[(\[]\s*(?:feat\.?|ft\.?|featuring|with)\s[^)\]]*[)\]]|\s(?:feat\.?|ft\.?|featuring)\s.*$`)
	reStripPunctuation = regexp.MustCompile(`[.,:;(){}\[\]'"!?\-–—/]`)
	reRomanNumeral     = regexp.MustCompile(`\b(ii|iii|iv|vi|vii|viii|ix)\b`)
	reYear             = regexp.MustCompile(`\b(19|20)\d\d\b`)
)

var romanDigits = map[string]string{
	"ii": "2", "iii": "3", "iv": "4", "vi": "6", "vii": "7", "viii": "8", "ix": "9",
}

func stripDiacritics(s string) string {
	t := norm.NFD.String(s)
	out := make([]rune, 0, len(t))
	for _, r := range t {
		if unicode.IsMark(r) {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func normalizeName(s string) string {
	s = reFeatClause.ReplaceAllString(s, " ")
	s = strings.ToLower(stripDiacritics(s))
	s = strings.ReplaceAll(s, "&", " and ")
	s = reStripPunctuation.ReplaceAllString(s, " ")
	s = reRomanNumeral.ReplaceAllStringFunc(s, func(m string) string { return romanDigits[m] })

	toks := strings.Fields(s)
	for i, tok := range toks {
		if tok == "pt" {
			toks[i] = "part"
		}
	}
	return strings.Join(toks, " ")
}

// ------------------------------------
// Canon Structure
// ------------------------------------

type trackCanon struct {
	Raw        Track
	Core       string
	TokenSet   map[string]struct{}
	SortedCore string
}

func canonize(t Track) trackCanon {
	core := stripVersionTags(normalizeName(t.Name))
	core = strings.Join(strings.Fields(reYear.ReplaceAllString(core, " ")), " ")

	toks := strings.Fields(core)
	set := make(map[string]struct{}, len(toks))
	for _, tok := range toks {
		set[tok] = struct{}{}
	}
	sorted := append([]string(nil), toks...)
	sort.Strings(sorted)

	return trackCanon{
		Raw:        t,
		Core:       core,
		TokenSet:   set,
		SortedCore: strings.Join(sorted, " "),
	}
}

func subset(short, long map[string]struct{}) bool {
	if len(short) < 2 || len(short) > len(long) {
		return false
	}
	for tok := range short {
		if _, ok := long[tok]; !ok {
			return false
		}
	}
	return true
}

// ------------------------------------
// Heuristic Equality
// ------------------------------------

func sameTrack(a, b trackCanon, threshold float64) bool {
	if a.Raw.ID != "" && a.Raw.ID == b.Raw.ID {
		return true
	}
	if a.Core == "" || b.Core == "" {
		return false
	}
	if a.Core == b.Core || a.SortedCore == b.SortedCore {
		return true
	}
	if subset(a.TokenSet, b.TokenSet) || subset(b.TokenSet, a.TokenSet) {
		return true
	}
	return levenshtein.Similarity(a.Core, b.Core, nil) >= threshold
}

// IsLikelySameTrack reports whether a and b look like the same recording.
func IsLikelySameTrack(a, b Track, threshold float64) bool {
	return sameTrack(canonize(a), canonize(b), threshold)
}

// ------------------------------------
// Deduplicate
// ------------------------------------

// DeduplicateTracks keeps the first occurrence of each song, in input
// order, and folds later duplicates into it.
func DeduplicateTracks(in []Track, threshold float64) []Track {
	start := time.Now()

	out := make([]trackCanon, 0, len(in))
	for _, t := range in {
		c := canonize(t)
		merged := false
		for i := range out {
			if sameTrack(out[i], c, threshold) {
				out[i].Raw = mergeTracks(out[i].Raw, c.Raw)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}

	final := make([]Track, len(out))
	for i, c := range out {
		final[i] = c.Raw
	}

	log.WithFields(logrus.Fields{
		"in":        len(in),
		"out":       len(final),
		"threshold": threshold,
		"elapsed":   time.Since(start),
	}).Debug("deduplicated tracks")
	return final
}

func mergeTracks(a, b Track) Track {
	if a.ID == "" {
		a.ID = b.ID
	}
	if a.ImageURL == "" {
		a.ImageURL = b.ImageURL
	}
	if a.DurationMS == 0 {
		a.DurationMS = b.DurationMS
	}
	return a
}
