// Package search implements ranked fuzzy search over a repository's package
// index, per spec.md §4.G: a Sørensen–Dice bigram similarity with a
// substring bonus, windowed for very large combined input.
package search

import (
	"sort"
	"strings"
)

// windowThreshold matches spec.md §4.G: inputs whose combined bigram count
// (total runes minus 2) is ≥ 10000 use a windowed/chunked approximation
// instead of the exact formula.
const windowThreshold = 10000

const chunkSize = 500

// scoreThreshold is the minimum Sørensen similarity that contributes to a
// candidate's score at all.
const scoreThreshold = 0.2

// substringBonus is added when the candidate contains the (case-sensitive,
// un-lowercased) query as a substring.
const substringBonus = 0.01

// Result is one ranked candidate.
type Result struct {
	Name  string
	Score float64
}

// Rank scores every candidate in names against query and returns the
// matches (score > 0) sorted by descending score, ties broken by ascending
// name, per spec.md §4.G.
func Rank(query string, names []string) []Result {
	lowerQuery := strings.ToLower(query)
	var out []Result
	for _, name := range names {
		score := 0.0
		if d := Distance(lowerQuery, strings.ToLower(name)); d >= scoreThreshold {
			score += d
		}
		if strings.Contains(name, query) {
			score += substringBonus
		}
		if score > 0 {
			out = append(out, Result{Name: name, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Distance computes the Sørensen–Dice coefficient between a and b over
// overlapping bigrams, falling back to a windowed/chunked approximation
// when the combined input is very large. Equal to the exact formula for
// any input under the threshold.
func Distance(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	xLen := len(ra) - 1
	yLen := len(rb) - 1
	if xLen+yLen < windowThreshold {
		return shortLength(bigrams(ra), bigrams(rb))
	}
	total := longLength(chunks(ra, chunkSize), chunks(rb, chunkSize))
	return total / float64(xLen+yLen)
}

func bigrams(r []rune) []string {
	if len(r) < 2 {
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}

func chunks(r []rune, size int) [][]rune {
	var out [][]rune
	for i := 0; i < len(r); i += size {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, r[i:end])
	}
	return out
}

// intersection counts, for each bigram in wy present in the set of bigrams
// of wx, 2 (matching the reference implementation's HashSet-based count,
// which treats wx's bigrams as a deduplicated set but does not deduplicate
// wy's contribution).
func intersection(wx, wy []string) int64 {
	set := make(map[string]struct{}, len(wx))
	for _, w := range wx {
		set[w] = struct{}{}
	}
	var n int64
	for _, w := range wy {
		if _, ok := set[w]; ok {
			n += 2
		}
	}
	return n
}

func shortLength(wx, wy []string) float64 {
	nx, ny := len(wx), len(wy)
	n := intersection(wx, wy)
	return float64(n) / float64(nx+ny)
}

func longLength(cx, cy [][]rune) float64 {
	var total int64
	for i, chunk := range cx {
		if i >= len(cy) {
			break
		}
		total += intersection(bigrams(chunk), bigrams(cy[i]))
	}
	return float64(total)
}
