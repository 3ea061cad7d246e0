// Package search ranks the messages of one conversation against a query.
//
// An Index is built once from a fixed set of documents and is read-only
// afterwards, so it is safe for concurrent use. Scoring is Jaccard
// similarity between token sets, |Q ∩ D| / |Q ∪ D|; ties go to the shorter
// text and then to the smaller id.
package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// DefaultK is used when TopK is asked for k <= 0.
const DefaultK = 3

// CommonStopwords are English and Filipino function words that carry no
// meaning in market chat.
var CommonStopwords = []string{
	"a", "an", "and", "are", "do", "for", "have", "in", "is", "it", "of", "on", "or", "the", "to", "yes",
	"ako", "ang", "at", "ay", "ba", "ka", "kami", "kay", "kayo", "ko", "mga", "mo", "na", "ng", "ni",
	"pa", "po", "sa", "si", "sila", "siya",
}

// Document is one searchable text with the id of its source record.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked match with its similarity score.
type Result struct {
	ID      string  `json:"id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Option configures New.
type Option func(*Index)

// WithStopwords drops words from documents and queries, ignoring case.
func WithStopwords(words ...string) Option {
	return func(ix *Index) {
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				ix.stop[w] = struct{}{}
			}
		}
	}
}

type entry struct {
	id     string
	text   string
	runes  int
	tokens []string // sorted, unique
}

// Index is an immutable Jaccard index.
type Index struct {
	stop    map[string]struct{}
	entries []entry
}

// New indexes docs. Blank documents and documents made only of stopwords
// are skipped.
func New(docs []Document, opts ...Option) *Index {
	ix := &Index{stop: map[string]struct{}{}}
	for _, o := range opts {
		o(ix)
	}
	ix.entries = make([]entry, 0, len(docs))
	for _, d := range docs {
		text := strings.Join(strings.Fields(d.Text), " ")
		toks := ix.tokens(text)
		if len(toks) == 0 {
			continue
		}
		ix.entries = append(ix.entries, entry{
			id:     d.ID,
			text:   text,
			runes:  utf8.RuneCountInString(text),
			tokens: toks,
		})
	}
	return ix
}

// Len reports how many documents were indexed.
func (ix *Index) Len() int { return len(ix.entries) }

// TopK returns up to k matches, best first. It returns nil when nothing
// overlaps the query.
func (ix *Index) TopK(query string, k int) []Result {
	q := ix.tokens(query)
	if len(q) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultK
	}

	type hit struct {
		e     *entry
		score float64
	}
	var hits []hit
	for i := range ix.entries {
		e := &ix.entries[i]
		if n := shared(q, e.tokens); n > 0 {
			hits = append(hits, hit{e: e, score: float64(n) / float64(len(q)+len(e.tokens)-n)})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		return cmp.Or(
			cmp.Compare(b.score, a.score),
			cmp.Compare(a.e.runes, b.e.runes),
			strings.Compare(a.e.id, b.e.id),
		)
	})

	var out []Result
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, Result{ID: h.e.id, Snippet: h.e.text, Score: h.score})
	}
	return out
}

// fold builds a Caser per call; Casers are stateful.
func fold(s string) string { return cases.Fold().String(s) }

// tokens splits s into case-folded words of letters and digits, minus
// stopwords, sorted and deduplicated.
func (ix *Index) tokens(s string) []string {
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words = slices.DeleteFunc(words, func(w string) bool {
		_, stop := ix.stop[w]
		return stop
	})
	slices.Sort(words)
	return slices.Compact(words)
}

// shared counts the common elements of two sorted sets.
func shared(a, b []string) int {
	n := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch c := strings.Compare(a[i], b[j]); {
		case c == 0:
			n++
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return n
}
