package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/version"
)

const (
	DefaultGitHubURL = "https://api.github.com/repos/kpauljoseph/deckdrill/releases/latest"
	userAgent        = "deckdrill-updater"
	minCheckInterval = time.Hour
)

type Checker struct {
	client         *http.Client
	logger         *logger.Logger
	versionURL     string
	githubURL      string
	currentVersion string
	lastChecked    time.Time
}

type Option func(*Checker)

func WithEndpoints(versionURL, githubURL string) Option {
	return func(c *Checker) {
		c.versionURL = versionURL
		c.githubURL = githubURL
	}
}

// WithManifestURL points the checker at a release manifest. Without one only
// GitHub releases are consulted.
func WithManifestURL(url string) Option {
	return func(c *Checker) {
		c.versionURL = url
	}
}

func WithCurrentVersion(v string) Option {
	return func(c *Checker) {
		c.currentVersion = v
	}
}

func NewChecker(logger *logger.Logger, opts ...Option) *Checker {
	c := &Checker{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:         logger,
		githubURL:      DefaultGitHubURL,
		currentVersion: version.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckForUpdates returns nil, nil when called again within the rate limit window.
func (c *Checker) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	if !c.lastChecked.IsZero() && time.Since(c.lastChecked) < minCheckInterval {
		return nil, nil
	}
	c.lastChecked = time.Now()

	c.logger.Debug("Checking for updates...")

	if c.versionURL == "" {
		return c.checkGitHubAPI(ctx)
	}

	info, err := c.checkPrimaryEndpoint(ctx)
	if err != nil {
		c.logger.Debug("Primary endpoint failed, falling back to GitHub: %v", err)
		return c.checkGitHubAPI(ctx)
	}
	return info, nil
}

func (c *Checker) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode version info: %w", err)
	}
	return nil
}

func (c *Checker) checkPrimaryEndpoint(ctx context.Context) (*UpdateInfo, error) {
	var m Manifest
	if err := c.get(ctx, c.versionURL, &m); err != nil {
		return nil, err
	}
	if m.Latest == "" {
		return nil, errors.New("manifest has no latest_version")
	}

	current := strings.TrimPrefix(c.currentVersion, "v")
	latest := strings.TrimPrefix(m.Latest, "v")

	platformKey := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	downloadURL, ok := m.Downloads[platformKey]
	if !ok {
		c.logger.Debug("No download for %s, pointing at the release notes", platformKey)
		downloadURL = m.NotesURL
	}

	info := &UpdateInfo{
		CurrentVersion: current,
		LatestVersion:  latest,
		Message:        m.Message,
		DownloadURL:    downloadURL,
		IsAvailable:    CompareVersions(current, latest) < 0,
	}
	if m.MinVersion != "" {
		info.Required = CompareVersions(current, strings.TrimPrefix(m.MinVersion, "v")) < 0
	}
	return info, nil
}

func (c *Checker) checkGitHubAPI(ctx context.Context) (*UpdateInfo, error) {
	var release GitHubRelease
	if err := c.get(ctx, c.githubURL, &release); err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub release: %w", err)
	}

	current := strings.TrimPrefix(c.currentVersion, "v")
	latest := strings.TrimPrefix(release.TagName, "v")

	return &UpdateInfo{
		CurrentVersion: current,
		LatestVersion:  latest,
		Message:        release.Body,
		DownloadURL:    release.HTMLURL,
		IsAvailable:    !release.Draft && !release.Prerelease && CompareVersions(current, latest) < 0,
	}, nil
}

// CompareVersions returns:
//
//	-1 if v1 < v2
//	 0 if v1 == v2
//	 1 if v1 > v2
//
// Numeric parts compare as numbers, anything else lexically.
func CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		n1, err1 := strconv.Atoi(parts1[i])
		n2, err2 := strconv.Atoi(parts2[i])
		if err1 == nil && err2 == nil {
			if n1 != n2 {
				if n1 < n2 {
					return -1
				}
				return 1
			}
			continue
		}
		if parts1[i] < parts2[i] {
			return -1
		}
		if parts1[i] > parts2[i] {
			return 1
		}
	}

	if len(parts1) < len(parts2) {
		return -1
	}
	if len(parts1) > len(parts2) {
		return 1
	}
	return 0
}
