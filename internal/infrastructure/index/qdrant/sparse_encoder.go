package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	docBM25K1      = 1.2
	queryBM25K     = 1.2
	titleBoost     = 1.5
	maxSparseTerms = 256
)

func encodeSparseDocument(content string, title string) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	appendTermFreq(termFreq, tokenize(content), 1.0)
	appendTermFreq(termFreq, tokenize(title), titleBoost)
	return termFreqToSparse(termFreq, docBM25K1)
}

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenize(query), 1.0)
	return termFreqToSparse(termFreq, queryBM25K)
}

func appendTermFreq(dst map[uint32]float64, tokens []string, tokenWeight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		dst[hashToken(token)] += tokenWeight
	}
}

func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		// Oversized documents keep their heaviest terms; ascending index
		// order below is only the wire format, not a relevance signal.
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (k + 1.0)) / (tfValue + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// tokenize splits latin/digit runs as whole tokens and emits Han characters
// as overlapping bigrams, which works acceptably for statute text without a
// segmenter. Single Han characters still produce a unigram token.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var ascii strings.Builder
	var prevHan rune

	flushASCII := func() {
		if ascii.Len() > 0 {
			out = append(out, ascii.String())
			ascii.Reset()
		}
	}

	for _, r := range s {
		lower := unicode.ToLower(r)
		switch {
		case (lower >= 'a' && lower <= 'z') || (lower >= '0' && lower <= '9'):
			ascii.WriteRune(lower)
			prevHan = 0
		case unicode.Is(unicode.Han, r):
			flushASCII()
			if prevHan != 0 {
				out = append(out, string([]rune{prevHan, r}))
			} else {
				out = append(out, string(r))
			}
			prevHan = r
		default:
			flushASCII()
			prevHan = 0
		}
	}
	flushASCII()
	return out
}
