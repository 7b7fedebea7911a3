// Package appinfo reports the running version and whether a newer release
// has been published.
package appinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/smallbiznis/console/internal/config"
	"github.com/tidwall/gjson"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxFeedBytes  = 1 << 20
	fetchTimeout  = 10 * time.Second
	maxFailureTTL = time.Minute
)

var (
	ErrFeedUnavailable = errors.New("release_feed_unavailable")
	ErrFeedMalformed   = errors.New("release_feed_malformed")
)

// UpdateChecker is consumed by the settings menu to decorate the overview
// link.
type UpdateChecker interface {
	ShouldUpdate(ctx context.Context) bool
}

// Info is served on /admin/information.
type Info struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
	Edition         string    `json:"edition"`
	Environment     string    `json:"environment"`
	CheckedAt       time.Time `json:"checked_at"`
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Client *http.Client `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	client      *http.Client
	enabled     bool
	current     string
	environment string
	feedURL     string
	feedPath    string

	latest   *expirable.LRU[string, string]
	failures *expirable.LRU[string, error]
	group    singleflight.Group
}

func New(p Params) *Service {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	ttl := p.Config.UpdateCheckTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	failureTTL := min(ttl, maxFailureTTL)
	return &Service{
		log:         p.Log.Named("appinfo"),
		client:      client,
		enabled:     p.Config.UpdateCheckEnabled && p.Config.UpdateFeedURL != "",
		current:     p.Config.AppVersion,
		environment: p.Config.Environment,
		feedURL:     p.Config.UpdateFeedURL,
		feedPath:    p.Config.UpdateFeedPath,
		latest:      expirable.NewLRU[string, string](1, nil, ttl),
		failures:    expirable.NewLRU[string, error](1, nil, failureTTL),
	}
}

// Latest returns the newest published release tag. Results are cached for
// the configured TTL, failures for at most a minute, and concurrent callers
// share one request that outlives any single caller's context.
func (s *Service) Latest(ctx context.Context) (string, error) {
	if tag, ok := s.latest.Get(s.feedURL); ok {
		return tag, nil
	}
	if err, ok := s.failures.Get(s.feedURL); ok {
		return "", err
	}

	ch := s.group.DoChan(s.feedURL, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		tag, err := s.fetch(fetchCtx)
		if err != nil {
			s.failures.Add(s.feedURL, err)
			return "", err
		}
		s.failures.Remove(s.feedURL)
		s.latest.Add(s.feedURL, tag)
		return tag, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return "", ErrFeedMalformed
	}

	tag := strings.TrimSpace(gjson.GetBytes(body, s.feedPath).String())
	if tag == "" {
		return "", fmt.Errorf("%w: %q not found", ErrFeedMalformed, s.feedPath)
	}
	return tag, nil
}

// ShouldUpdate is false whenever the check is disabled or cannot be
// answered.
func (s *Service) ShouldUpdate(ctx context.Context) bool {
	if !s.enabled {
		return false
	}
	latest, err := s.Latest(ctx)
	if err != nil {
		s.log.Warn("update check failed", zap.Error(err))
		return false
	}
	newer, err := IsNewer(s.current, latest)
	if err != nil {
		s.log.Warn("unable to compare versions",
			zap.String("current", s.current),
			zap.String("latest", latest),
			zap.Error(err),
		)
		return false
	}
	return newer
}

// Information describes the running instance. The latest version is left
// empty when the feed cannot be read.
func (s *Service) Information(ctx context.Context, edition string) Info {
	info := Info{
		CurrentVersion: s.current,
		Edition:        edition,
		Environment:    s.environment,
		CheckedAt:      time.Now().UTC(),
	}
	if !s.enabled {
		return info
	}
	latest, err := s.Latest(ctx)
	if err != nil {
		s.log.Warn("update check failed", zap.Error(err))
		return info
	}
	info.LatestVersion = latest
	info.UpdateAvailable, _ = IsNewer(s.current, latest)
	return info
}

// IsNewer reports whether latest is a higher semantic version than current.
// A leading "v" is accepted on either side.
func IsNewer(current, latest string) (bool, error) {
	cur, err := version.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return false, err
	}
	next, err := version.NewVersion(strings.TrimSpace(latest))
	if err != nil {
		return false, err
	}
	return cur.LessThan(next), nil
}
