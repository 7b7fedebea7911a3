package settingsmenu

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/edition"
	"github.com/smallbiznis/console/internal/permission"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"github.com/smallbiznis/console/internal/rbac/repository"
	rbacservice "github.com/smallbiznis/console/internal/rbac/service"
	"github.com/smallbiznis/console/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticUpdates bool

func (s staticUpdates) ShouldUpdate(context.Context) bool { return bool(s) }

// gatedRBAC holds the first AllPermissions call until release is closed and
// optionally fails it.
type gatedRBAC struct {
	rbacdomain.Service
	entered chan struct{}
	release chan struct{}
	failErr error
	once    sync.Once
}

func newGatedRBAC(failErr error) *gatedRBAC {
	return &gatedRBAC{entered: make(chan struct{}), release: make(chan struct{}), failErr: failErr}
}

func (g *gatedRBAC) AllPermissions(ctx context.Context, userID snowflake.ID) ([]rbacdomain.Permission, error) {
	first := false
	g.once.Do(func() {
		first = true
		close(g.entered)
		<-g.release
	})
	if first && g.failErr != nil {
		return nil, g.failErr
	}
	return g.Service.AllPermissions(ctx, userID)
}

// countingUpdates reports how often the update check ran.
type countingUpdates struct {
	calls atomic.Int32
}

func (c *countingUpdates) ShouldUpdate(context.Context) bool {
	c.calls.Add(1)
	return true
}

type testEnv struct {
	svc      *Service
	rbac     rbacdomain.Service
	registry *config.RegistryHolder
}

type envOption func(*Params)

func withRBAC(wrap func(rbacdomain.Service) rbacdomain.Service) envOption {
	return func(p *Params) { p.RBAC = wrap(p.RBAC) }
}

func withUpdates(updates appinfo.UpdateChecker) envOption {
	return func(p *Params) { p.Updates = updates }
}

func newTestEnv(t *testing.T, ed edition.Edition, registry config.RegistryConfig, opts ...envOption) testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(dbConn))
	enforcer, err := rbacservice.NewEnforcer(dbConn)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	rbac := rbacservice.New(rbacservice.Params{
		DB:       dbConn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Enforcer: enforcer,
	})
	checker := permission.NewChecker(permission.Params{
		Log:       zap.NewNop(),
		Evaluator: permission.NewEvaluator(permission.EvaluatorParams{Log: zap.NewNop(), RBAC: rbac}),
	})

	holder := config.NewStaticRegistryHolder(registry)
	params := Params{
		Config:   config.Config{PromoteEnterprise: true, PermissionCheckLimit: 4},
		Log:      zap.NewNop(),
		Edition:  ed,
		RBAC:     rbac,
		Checker:  checker,
		Registry: holder,
		Provider: NewLinksProvider(ed),
		Updates:  staticUpdates(true),
	}
	for _, opt := range opts {
		opt(&params)
	}

	svc, err := NewService(params)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return testEnv{svc: svc, rbac: rbac, registry: holder}
}

func visibleIDs(menu Menu) map[string][]string {
	out := map[string][]string{}
	for _, section := range menu.Visible().Sections {
		out[section.ID] = append(out[section.ID], linkIDs(section)...)
	}
	return out
}

func TestServiceCommunityMenuForSuperAdmin(t *testing.T) {
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{})
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	menu, err := env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	assert.False(t, menu.IsLoading)

	visible := visibleIDs(menu)
	assert.Equal(t, []string{
		"internationalization", "media-library",
		ApplicationInfosLinkID, "webhooks", "api-tokens", "transfer-tokens",
		"purchase-review-workflows", "purchase-sso",
	}, visible[GlobalSectionID])
	assert.Equal(t, []string{"roles", "users", "purchase-audit-logs"}, visible[PermissionsSectionID])
	assert.Len(t, visible["users-permissions"], 4)

	for _, link := range menu.Sections[0].Links {
		assert.Equal(t, link.ID == ApplicationInfosLinkID, link.HasNotification, link.ID)
	}
}

func TestServiceEnterpriseOrdering(t *testing.T) {
	env := newTestEnv(t, edition.Enterprise(edition.License{ID: "lic"}), config.RegistryConfig{})
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	menu, err := env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)

	visible := visibleIDs(menu)
	assert.Equal(t, []string{
		"internationalization", "media-library",
		ApplicationInfosLinkID, "webhooks", "api-tokens", "transfer-tokens",
		"sso", "review-workflows",
	}, visible[GlobalSectionID])
	assert.Equal(t, []string{"auditLogs", "roles", "users"}, visible[PermissionsSectionID])
}

func TestServiceRefreshAfterRoleChange(t *testing.T) {
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{})
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "editor@example.com",
		Roles: []string{rbacdomain.RoleEditor},
	})
	require.NoError(t, err)

	menu, err := env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	visible := visibleIDs(menu)
	assert.Equal(t, []string{"users", "purchase-audit-logs"}, visible[PermissionsSectionID])
	assert.NotContains(t, visible[GlobalSectionID], "webhooks")
	assert.Empty(t, visible["email"])

	require.NoError(t, env.rbac.AssignRoles(ctx, user.ID, []string{rbacdomain.RoleSuperAdmin}))
	require.NoError(t, env.svc.RefreshUser(ctx, user.ID))

	menu, err = env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	visible = visibleIDs(menu)
	assert.Contains(t, visible[GlobalSectionID], "webhooks")
	assert.Equal(t, []string{"email.settings"}, visible["email"])
}

func TestServiceRejectsLinkWithoutID(t *testing.T) {
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{
		Sections: []config.SectionSpec{{ID: "broken", Links: []config.LinkSpec{{To: "/settings/broken"}}}},
	})
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{Email: "x@example.com"})
	require.NoError(t, err)

	_, err = env.svc.Menu(ctx, user.ID, false)
	assert.ErrorIs(t, err, ErrMissingLinkID)
	assert.Empty(t, env.svc.sessions.Keys())
}

type menuResult struct {
	menu Menu
	err  error
}

func TestServiceConcurrentFirstCallersWaitForReady(t *testing.T) {
	var gate *gatedRBAC
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{},
		withRBAC(func(inner rbacdomain.Service) rbacdomain.Service {
			gate = newGatedRBAC(nil)
			gate.Service = inner
			return gate
		}),
	)
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	first := make(chan menuResult, 1)
	go func() {
		menu, err := env.svc.Menu(ctx, user.ID, true)
		first <- menuResult{menu, err}
	}()
	<-gate.entered

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	second := make(chan menuResult, 1)
	go func() {
		menu, err := env.svc.Menu(waitCtx, user.ID, true)
		second <- menuResult{menu, err}
	}()

	select {
	case res := <-second:
		t.Fatalf("second caller returned before the first resolution settled: loading=%v err=%v", res.menu.IsLoading, res.err)
	case <-time.After(50 * time.Millisecond):
	}
	close(gate.release)

	for _, ch := range []chan menuResult{first, second} {
		res := <-ch
		require.NoError(t, res.err)
		assert.False(t, res.menu.IsLoading)
		assert.Contains(t, visibleIDs(res.menu)[PermissionsSectionID], "roles")
	}
}

func TestServiceFirstRefreshFailureReleasesWaiters(t *testing.T) {
	boom := errors.New("rbac unavailable")
	var gate *gatedRBAC
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{},
		withRBAC(func(inner rbacdomain.Service) rbacdomain.Service {
			gate = newGatedRBAC(boom)
			gate.Service = inner
			return gate
		}),
	)
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	first := make(chan menuResult, 1)
	go func() {
		menu, err := env.svc.Menu(ctx, user.ID, true)
		first <- menuResult{menu, err}
	}()
	<-gate.entered

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	second := make(chan menuResult, 1)
	go func() {
		menu, err := env.svc.Menu(waitCtx, user.ID, true)
		second <- menuResult{menu, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate.release)

	res := <-first
	assert.ErrorIs(t, res.err, boom)

	// The second caller either shared the failed session or started a new one.
	res = <-second
	assert.NotErrorIs(t, res.err, context.DeadlineExceeded)
	if res.err != nil {
		assert.ErrorIs(t, res.err, boom)
	} else {
		assert.False(t, res.menu.IsLoading)
	}
}

func TestServiceUpdateCheckRunsInsideBatch(t *testing.T) {
	updates := &countingUpdates{}
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{}, withUpdates(updates))
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	menu, err := env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), updates.calls.Load())
	assert.True(t, menu.Sections[0].Links[slices.IndexFunc(menu.Sections[0].Links, func(l Link) bool {
		return l.ID == ApplicationInfosLinkID
	})].HasNotification)
}

func TestServiceRegistryChangeRefreshesSessions(t *testing.T) {
	env := newTestEnv(t, edition.Community(), config.RegistryConfig{})
	ctx := context.Background()

	user, err := env.rbac.CreateUser(ctx, rbacdomain.CreateUserRequest{
		Email: "admin@example.com",
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	require.NoError(t, err)

	menu, err := env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	assert.NotContains(t, visibleIDs(menu), "documentation")

	env.registry.Store(config.RegistryConfig{
		Sections: []config.SectionSpec{{
			ID:             "documentation",
			DefaultMessage: "Documentation",
			Links:          []config.LinkSpec{{ID: "documentation.settings", To: "/settings/documentation"}},
		}},
	})

	menu, err = env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	assert.False(t, menu.IsLoading)
	assert.Equal(t, []string{"documentation.settings"}, visibleIDs(menu)["documentation"])

	// A rejected registry keeps the previous one.
	env.registry.Store(config.RegistryConfig{
		Sections: []config.SectionSpec{{ID: "permissions"}},
	})
	require.NoError(t, env.svc.RefreshUser(ctx, user.ID))
	menu, err = env.svc.Menu(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"documentation.settings"}, visibleIDs(menu)["documentation"])
}
