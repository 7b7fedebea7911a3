package settingsmenu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/edition"
	"github.com/smallbiznis/console/internal/featureswitch"
	"github.com/smallbiznis/console/internal/observability/metrics"
	"github.com/smallbiznis/console/internal/permission"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	linksFeature = "settings_links"
	maxSessions  = 10000
	sessionTTL   = 30 * time.Minute
)

type Params struct {
	fx.In

	Lifecycle   fx.Lifecycle `optional:"true"`
	Config      config.Config
	Log         *zap.Logger
	Edition     edition.Edition
	RBAC        rbacdomain.Service
	Checker     permission.Checker
	Registry    *config.RegistryHolder
	Provider    LinksProvider
	Updates     appinfo.UpdateChecker `optional:"true"`
	Metrics     *metrics.Metrics      `optional:"true"`
	MenuMetrics *metrics.MenuMetrics  `optional:"true"`
}

// Service keeps one Session per user and feeds it fresh inputs whenever
// the user's roles or the settings registry change.
type Service struct {
	log      *zap.Logger
	edition  edition.Edition
	rbac     rbacdomain.Service
	updates  appinfo.UpdateChecker
	metrics  *metrics.Metrics
	resolver *Resolver

	links    *featureswitch.Slot[Links]
	registry atomic.Pointer[Registry]

	mu       sync.Mutex
	sessions *expirable.LRU[snowflake.ID, *Session]
}

func NewService(p Params) (*Service, error) {
	log := p.Log.Named("settingsmenu.service")

	registry, err := NewRegistryFromConfig(p.Registry.Get())
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:     log,
		edition: p.Edition,
		rbac:    p.RBAC,
		updates: p.Updates,
		metrics: p.Metrics,
		resolver: NewResolver(p.Log, p.Checker,
			WithCheckLimit(p.Config.PermissionCheckLimit),
			WithCheckTimeout(p.Config.PermissionCheckTimeout),
			WithMenuMetrics(p.MenuMetrics),
			WithRecorder(p.Metrics),
		),
		sessions: expirable.NewLRU[snowflake.ID, *Session](maxSessions, func(_ snowflake.ID, session *Session) {
			session.Close()
		}, sessionTTL),
	}
	s.registry.Store(registry)

	sw := featureswitch.New[Links](p.Edition, p.Provider.Links,
		featureswitch.WithCombine[Links](MergeLinks),
		featureswitch.WithDefault(Links{}),
		featureswitch.WithName[Links](linksFeature),
		featureswitch.WithLogger[Links](log),
		featureswitch.WithRecorder[Links](p.Metrics),
	)
	s.links = featureswitch.NewSlot(context.Background(), sw, CommunityLinks(p.Edition, p.Config.PromoteEnterprise))

	p.Registry.OnChange(func(reg config.RegistryConfig) {
		next, err := NewRegistryFromConfig(reg)
		if err != nil {
			log.Warn("settings registry rejected", zap.Error(err))
			return
		}
		s.registry.Store(next)
		s.RefreshAll(context.Background())
	})

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				s.Close()
				return nil
			},
		})
	}
	return s, nil
}

// Menu returns the user's menu, starting a resolution on first use. With
// wait set it blocks until the menu is Ready. Concurrent first callers share
// the session; if its first resolution cannot start they all get the error.
func (s *Service) Menu(ctx context.Context, userID snowflake.ID, wait bool) (Menu, error) {
	session, created := s.session(userID)
	if created {
		if err := s.initialize(ctx, userID, session); err != nil {
			return Menu{}, err
		}
	}
	if wait {
		return session.Wait(ctx)
	}
	return session.State(), nil
}

// Refresh re-resolves the user's menu with current roles and registry.
func (s *Service) Refresh(ctx context.Context, userID snowflake.ID) error {
	session, created := s.session(userID)
	if created {
		return s.initialize(ctx, userID, session)
	}
	return s.refresh(ctx, userID, session)
}

// RefreshUser re-resolves only if the user already has a session.
func (s *Service) RefreshUser(ctx context.Context, userID snowflake.ID) error {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil
	}
	return s.refresh(ctx, userID, session)
}

// RefreshAll re-resolves every live session. Failures are logged.
func (s *Service) RefreshAll(ctx context.Context) {
	for _, userID := range s.sessions.Keys() {
		if err := s.RefreshUser(ctx, userID); err != nil {
			s.log.Error("settings menu refresh failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}

// Links returns the merged link set once the enterprise links settled.
func (s *Service) Links(ctx context.Context) (Links, error) {
	state, err := s.links.Wait(ctx)
	return state.Value, err
}

func (s *Service) Close() {
	s.links.Close()
	s.sessions.Purge()
}

func (s *Service) session(userID snowflake.ID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions.Get(userID); ok {
		return session, false
	}
	session := NewSession(s.resolver, WithUpdates(s.updates))
	session.OnDiscard(func() {
		s.metrics.RecordStaleDiscard(context.Background(), "settings_menu")
	})
	s.sessions.Add(userID, session)
	return session, true
}

// initialize runs the first refresh of a new session. On failure the session
// is settled with the error and dropped.
func (s *Service) initialize(ctx context.Context, userID snowflake.ID, session *Session) error {
	if err := s.refresh(ctx, userID, session); err != nil {
		session.Fail(err)
		s.sessions.Remove(userID)
		return err
	}
	return nil
}

func (s *Service) refresh(ctx context.Context, userID snowflake.ID, session *Session) error {
	in, err := s.input(ctx, userID)
	if err != nil {
		return err
	}
	if err := session.Refresh(ctx, in); err != nil {
		s.log.Error("settings menu contract violation",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) input(ctx context.Context, userID snowflake.ID) (Input, error) {
	granted, err := s.rbac.AllPermissions(ctx, userID)
	if err != nil {
		return Input{}, err
	}
	links, err := s.Links(ctx)
	if err != nil {
		return Input{}, err
	}

	return Input{
		UserID:   userID,
		Granted:  granted,
		Links:    links,
		Registry: s.registry.Load().Snapshot(),
		Edition:  s.edition.Name(),
	}, nil
}
