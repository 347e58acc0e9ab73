package topic

import (
	"testing"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

var allowed = []string{
	"tecnologia", "technology", "tech",
	"programacion", "programming", "desarrollo", "development",
	"inteligencia artificial", "ia", "ai", "machine learning", "ml",
	"ciberseguridad", "cybersecurity", "seguridad", "security",
	"startup", "startups", "software", "hardware",
	"web", "frontend", "backend", "python", "javascript", "java", "rust", "go",
	"devops", "cloud", "docker", "kubernetes",
	"data", "big data", "mobile", "android", "ios", "science", "research",
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Topic
	}{
		{"  Machine   Learning ", "machine learning"},
		{"RUST", "rust"},
		{"", ""},
		{"\tGo\n", "go"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDomainAllows(t *testing.T) {
	d := NewDomain(allowed)
	tests := []struct {
		topic string
		want  bool
	}{
		{"machine learning", true},
		{"Machine Learning", true},
		{"programming", true},
		{"rust", true},
		{"kubernetes operators", true},
		{"cloudnative", true},
		{"pythonic idioms", true},
		{"quantum sociology", false},
		{"gardening", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := d.Allows(Topic(tt.topic)); got != tt.want {
			t.Errorf("Allows(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestDomainIgnoresShortWordsForWordMatch(t *testing.T) {
	d := NewDomain([]string{"mobile"})
	// "mob" is a substring of "mobile" but the word is too short to count,
	// and the whole topic "mob psychology" does not match.
	if d.Allows("mob psychology") {
		t.Error("short words should not trigger a per-word match")
	}
	if !d.Allows("mob") {
		t.Error("a whole topic contained in a keyword should match")
	}
}

func testCategories() []Category {
	return []Category{
		{Name: "ai", Keywords: []string{"ai", "inteligencia", "machine learning", "ml"},
			Sources: []Source{{Name: "r/MachineLearning", URL: "https://example.com/ml", Kind: cache.KindStandard}}},
		{Name: "programming", Keywords: []string{"program", "desarrollo", "development", "code"},
			Sources: []Source{{Name: "r/programming", URL: "https://example.com/prog", Kind: cache.KindStandard}}},
		{Name: "cybersecurity", Keywords: []string{"security", "ciberseguridad", "seguridad"}},
		{Name: "technology", Keywords: []string{"tech", "tecnologia"}},
		{Name: DefaultCategory, Sources: []Source{{Name: "HN", URL: "https://example.com/hn", Kind: cache.KindStandard}}},
	}
}

func TestResolve(t *testing.T) {
	r, err := NewResolver(testCategories())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	tests := []struct {
		topic string
		want  string
	}{
		{"machine learning", "ai"},
		{"programming", "programming"},
		{"Cybersecurity", "cybersecurity"},
		{"tech news", "technology"},
		{"rust", DefaultCategory},
		{"blockchain", "ai"}, // first match wins, "ai" is inside "blockchain"
	}
	for _, tt := range tests {
		if got := r.Resolve(Topic(tt.topic)).Name; got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
	if got := r.Sources("rust"); len(got) != 1 || got[0].Name != "HN" {
		t.Errorf("unexpected default sources: %+v", got)
	}
}

func TestResolverRequiresDefault(t *testing.T) {
	cats := testCategories()
	if _, err := NewResolver(cats[:2]); err == nil {
		t.Error("expected error without a default category")
	}
}
