package keywords

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynthesize_RulesAndOrdering(t *testing.T) {
	got, err := Synthesize(Input{
		ArtistName: "Alpha",
		Genres:     []string{"Synthwave", "idm", "", "g3", "g4", "g5", "g6-dropped"},
		Tags:       []string{"retro", "SYNTHWAVE", " chill  out "},
		PoolNames:  []string{"Beta", "Gamma"},
		UserCSV:    " night drive, ,Beta,  outrun ",
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"alpha", "beta", "chill out", "g3", "g4", "gamma", "idm",
		"night drive", "outrun", "retro", "synthwave",
	}, got)
}

func TestSynthesize_TagLimit(t *testing.T) {
	tags := make([]string, 15)
	for i := range tags {
		tags[i] = string(rune('a' + i))
	}
	got, err := Synthesize(Input{Tags: tags})
	require.NoError(t, err)
	require.Len(t, got, MaxTags)
	require.NotContains(t, got, "k")
}

func TestSynthesize_SelectedTrack(t *testing.T) {
	got, err := Synthesize(Input{
		ArtistName:  "Alpha",
		TrackName:   "Neon Nights (feat. Delta & Echo)",
		TrackArtist: "Alpha",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "delta", "echo", "neon nights (feat. delta & echo) alpha"}, got)
}

func TestSynthesize_NoDuplicatesNoEmpties(t *testing.T) {
	got, err := Synthesize(Input{
		ArtistName: "Café",
		Genres:     []string{"Café", "  "},
		PoolNames:  []string{"CAFÉ"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"café"}, got)
}

func TestSynthesize_EmptyIsError(t *testing.T) {
	_, err := Synthesize(Input{Genres: []string{"", " "}, UserCSV: " , ,"})
	require.ErrorIs(t, err, ErrNoKeywords)
}

func TestSplitCSV(t *testing.T) {
	require.Equal(t, []string{"a", "b c"}, SplitCSV(" a ,, b c ,"))
	require.Nil(t, SplitCSV(""))
}
