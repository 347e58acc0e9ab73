package topic

import (
	"strings"

	"golang.org/x/text/cases"
)

// Topic is a normalized subscription subject.
type Topic string

func (t Topic) String() string { return string(t) }

// Normalize trims, collapses whitespace and case-folds a raw topic.
func Normalize(raw string) Topic {
	// Casers carry state and cannot be shared across goroutines.
	return Topic(cases.Fold().String(strings.Join(strings.Fields(raw), " ")))
}

// Domain is the curated set of subjects users may subscribe to.
type Domain struct {
	keywords []string
}

// NewDomain builds a Domain from allowed keywords; blanks are ignored.
func NewDomain(keywords []string) Domain {
	d := Domain{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		if k := string(Normalize(kw)); k != "" {
			d.keywords = append(d.keywords, k)
		}
	}
	return d
}

// Allows reports whether t falls inside the domain. A topic matches when it
// contains or is contained in an allowed keyword, or when one of its words
// longer than three characters does.
func (d Domain) Allows(t Topic) bool {
	s := string(Normalize(string(t)))
	if s == "" {
		return false
	}
	for _, kw := range d.keywords {
		if strings.Contains(s, kw) || strings.Contains(kw, s) {
			return true
		}
	}
	for _, word := range strings.Fields(s) {
		if len([]rune(word)) <= 3 {
			continue
		}
		for _, kw := range d.keywords {
			if strings.Contains(kw, word) || strings.Contains(word, kw) {
				return true
			}
		}
	}
	return false
}

// Keywords returns a copy of the allowed keywords.
func (d Domain) Keywords() []string {
	return append([]string(nil), d.keywords...)
}
