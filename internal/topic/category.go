package topic

import (
	"fmt"
	"strings"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

// DefaultCategory is used when no other category matches a topic.
const DefaultCategory = "default"

// Source is a single upstream feed endpoint.
type Source struct {
	Name string
	URL  string
	Kind cache.SourceKind
}

// Category groups the sources that serve a family of topics.
type Category struct {
	Name     string
	Keywords []string
	Sources  []Source
}

// Resolver maps topics to categories. Categories are tried in order and the
// first with a keyword contained in the topic wins.
type Resolver struct {
	categories []Category
	fallback   Category
}

func NewResolver(categories []Category) (*Resolver, error) {
	r := &Resolver{}
	found := false
	for _, c := range categories {
		if c.Name == DefaultCategory {
			r.fallback = c
			found = true
			continue
		}
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if k := string(Normalize(kw)); k != "" {
				kws = append(kws, k)
			}
		}
		c.Keywords = kws
		r.categories = append(r.categories, c)
	}
	if !found {
		return nil, fmt.Errorf("no %q category configured", DefaultCategory)
	}
	return r, nil
}

// Resolve returns the category for t, never failing.
func (r *Resolver) Resolve(t Topic) Category {
	s := string(Normalize(string(t)))
	for _, c := range r.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(s, kw) {
				return c
			}
		}
	}
	return r.fallback
}

// Sources is shorthand for Resolve(t).Sources.
func (r *Resolver) Sources(t Topic) []Source {
	return r.Resolve(t).Sources
}
