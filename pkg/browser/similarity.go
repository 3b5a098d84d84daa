package browser

import "strings"

// matchKind classifies how a search result was selected.
type matchKind int

const (
	matchNone matchKind = iota
	matchExact
	matchFuzzy
	matchFirst
)

func (k matchKind) String() string {
	switch k {
	case matchExact:
		return "exact"
	case matchFuzzy:
		return "fuzzy"
	case matchFirst:
		return "first"
	default:
		return "none"
	}
}

// chooseSearchResult picks which search result to select for target.
// Precedence: exact case-insensitive title match, then the highest-scoring
// similarity match above threshold, then the first listed result. Returns -1
// when titles is empty. Empty titles in the list are skipped.
func chooseSearchResult(target string, titles []string, threshold float64) (int, matchKind) {
	if len(titles) == 0 {
		return -1, matchNone
	}

	want := strings.ToLower(strings.TrimSpace(target))
	bestIndex := -1
	bestScore := -1.0

	for i, title := range titles {
		t := strings.ToLower(strings.TrimSpace(title))
		if t == "" {
			continue
		}
		if t == want {
			return i, matchExact
		}
		if score := similarityRatio(want, t); score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestIndex >= 0 && bestScore > threshold {
		return bestIndex, matchFuzzy
	}
	return 0, matchFirst
}

// similarityRatio computes 2*M/T where M is the number of characters covered
// by recursively taken longest common substrings and T is the total length of
// both inputs. Identical strings score 1.0, disjoint strings 0.0. Inputs are
// compared as-is; callers lowercase beforehand.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	m := matchingChars([]rune(a), []rune(b))
	return 2.0 * float64(m) / float64(len([]rune(a))+len([]rune(b)))
}

// matchingChars counts characters in the longest common substring of a and b
// plus, recursively, the matches in the unmatched pieces on either side.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:ai], b[:bi])
	total += matchingChars(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	// One-row DP; inputs are short UI titles.
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prev + 1
				if row[j] > size {
					size = row[j]
					ai = i - size
					bi = j - size
				}
			} else {
				row[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}
