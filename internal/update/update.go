package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultReleaseURL points at the latest published release.
const DefaultReleaseURL = "https://api.github.com/repos/matheuskafuri/intelfeed/releases/latest"

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
	Newer         bool
}

type ghRelease struct {
	TagName string `json:"tag_name"`
}

type Checker struct {
	URL    string
	Client *http.Client
}

// Check queries the releases API and reports whether a newer version exists.
func (c Checker) Check(ctx context.Context, currentVersion string) (*Result, error) {
	url := c.URL
	if url == "" {
		url = DefaultReleaseURL
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release check: unexpected status %d", resp.StatusCode)
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == "" {
		return nil, fmt.Errorf("release check: empty tag")
	}
	current := strings.TrimPrefix(currentVersion, "v")
	return &Result{LatestVersion: latest, Newer: latest != current && current != "dev"}, nil
}
