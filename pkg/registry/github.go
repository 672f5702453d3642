package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/versions"
)

const (
	// releasesPerPage is the number of releases fetched per API page.
	releasesPerPage = 50
	// maxReleasePages is the upper bound on pagination to avoid runaway requests.
	maxReleasePages = 3
)

// Release is a published, stable GitHub release.
type Release struct {
	Version string // tag with the leading "v" removed
	TagName string
	Assets  []Asset
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name string
	URL  string
	Size int64
}

// AssetURL returns the download URL of the named asset.
func (r Release) AssetURL(name string) (string, bool) {
	for _, a := range r.Assets {
		if strings.EqualFold(a.Name, name) {
			return a.URL, true
		}
	}
	return "", false
}

type githubRelease struct {
	TagName    string        `json:"tag_name"`
	Prerelease bool          `json:"prerelease"`
	Draft      bool          `json:"draft"`
	Assets     []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// ListReleases fetches stable (non-draft, non-prerelease) releases of
// owner/repo, newest first. Releases whose tag is not an orderable version are
// dropped.
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	var all []Release

	for page := 1; page <= maxReleasePages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d&page=%d",
			c.cfg.GitHubAPI, owner, repo, releasesPerPage, page)

		batch, err := c.fetchReleasePage(ctx, url)
		if err != nil {
			return nil, err
		}

		for _, gr := range batch {
			if gr.Draft || gr.Prerelease {
				continue
			}
			v := versions.Normalize(gr.TagName)
			if !versions.Valid(v) {
				continue
			}
			rel := Release{Version: v, TagName: gr.TagName}
			for _, ga := range gr.Assets {
				rel.Assets = append(rel.Assets, Asset{Name: ga.Name, URL: ga.BrowserDownloadURL, Size: ga.Size})
			}
			all = append(all, rel)
		}

		if len(batch) < releasesPerPage {
			break
		}
	}

	return sortReleasesDesc(all), nil
}

func (c *Client) fetchReleasePage(ctx context.Context, url string) ([]githubRelease, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(ctx, url, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var batch []githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&batch); err != nil {
		return nil, apperrors.NewNetworkError("failed to decode release listing", err).WithContext("url", url)
	}
	return batch, nil
}

// sortReleasesDesc orders releases newest first, keeping the first release
// seen for each version.
func sortReleasesDesc(releases []Release) []Release {
	slices.SortStableFunc(releases, func(a, b Release) int {
		c, err := versions.Compare(b.Version, a.Version)
		if err != nil {
			return 0
		}
		return c
	})

	out := make([]Release, 0, len(releases))
	seen := make(map[string]bool, len(releases))
	for _, r := range releases {
		if seen[r.Version] {
			continue
		}
		seen[r.Version] = true
		out = append(out, r)
	}
	return out
}
