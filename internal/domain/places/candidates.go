package places

import (
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/forPelevin/placecut/internal/types"
)

// MinCandidateLen is exclusive: a phrase must be longer than this to count.
const MinCandidateLen = 3

var capitalizedPhraseRE = regexp.MustCompile(`[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)

// CapitalizedPhrases treats every run of capitalized words as a possible
// place name. It accepts names, brands and OCR artifacts alike; it does no
// disambiguation.
type CapitalizedPhrases struct {
	MinLen int
}

func NewCapitalizedPhrases() CapitalizedPhrases {
	return CapitalizedPhrases{MinLen: MinCandidateLen}
}

// Extract matches each text on its own, so phrases never span two
// recognized captions. Output is sorted and unique.
func (s CapitalizedPhrases) Extract(texts []string) []types.Candidate {
	minLen := s.MinLen
	if minLen <= 0 {
		minLen = MinCandidateLen
	}

	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, m := range capitalizedPhraseRE.FindAllString(text, -1) {
			if utf8.RuneCountInString(m) <= minLen {
				continue
			}
			seen[m] = struct{}{}
		}
	}

	out := make([]types.Candidate, 0, len(seen))
	for m := range seen {
		out = append(out, types.Candidate{Text: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// IsCandidate reports whether s is a whole capitalized phrase long enough to
// be extracted.
func IsCandidate(s string) bool {
	loc := capitalizedPhraseRE.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s) && utf8.RuneCountInString(s) > MinCandidateLen
}
