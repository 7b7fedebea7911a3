package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/auth"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/edition"
	"github.com/smallbiznis/console/internal/observability"
	"github.com/smallbiznis/console/internal/permission"
	"github.com/smallbiznis/console/internal/ratelimit"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"github.com/smallbiznis/console/internal/settingsmenu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminID  = snowflake.ID(100)
	editorID = snowflake.ID(200)
)

type fakeRBAC struct {
	rbacdomain.Service

	mu    sync.Mutex
	perms map[snowflake.ID][]rbacdomain.Permission
	roles map[snowflake.ID][]string
}

func newFakeRBAC() *fakeRBAC {
	return &fakeRBAC{
		perms: map[snowflake.ID][]rbacdomain.Permission{
			adminID: {
				{Action: rbacdomain.ActionUsersUpdate, Conditions: []string{}},
				{Action: rbacdomain.ActionRolesRead, Conditions: []string{}},
			},
			editorID: {
				{Action: rbacdomain.ActionLocaleRead, Conditions: []string{}},
			},
		},
		roles: map[snowflake.ID][]string{
			adminID:  {rbacdomain.RoleSuperAdmin},
			editorID: {rbacdomain.RoleEditor},
		},
	}
}

func (f *fakeRBAC) AllPermissions(_ context.Context, userID snowflake.ID) ([]rbacdomain.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms[userID], nil
}

func (f *fakeRBAC) Enforce(_ context.Context, userID snowflake.ID, action string, _ *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, perm := range f.perms[userID] {
		if perm.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRBAC) GetUser(_ context.Context, userID snowflake.ID) (*rbacdomain.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[userID]; !ok {
		return nil, rbacdomain.ErrNotFound
	}
	return &rbacdomain.AdminUser{ID: userID}, nil
}

func (f *fakeRBAC) AssignRoles(_ context.Context, userID snowflake.ID, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range roles {
		if role != rbacdomain.RoleSuperAdmin && role != rbacdomain.RoleEditor && role != rbacdomain.RoleAuthor {
			return fmt.Errorf("%w: %s", rbacdomain.ErrUnknownRole, role)
		}
	}
	f.roles[userID] = roles
	return nil
}

func (f *fakeRBAC) Roles(_ context.Context, userID snowflake.ID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[userID], nil
}

type fakeMenus struct {
	mu        sync.Mutex
	err       error
	waits     []bool
	refreshed []snowflake.ID
}

func (f *fakeMenus) Menu(_ context.Context, _ snowflake.ID, wait bool) (settingsmenu.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, wait)
	if f.err != nil {
		return settingsmenu.Menu{}, f.err
	}
	return settingsmenu.Menu{Sections: []settingsmenu.Section{{
		ID: settingsmenu.GlobalSectionID,
		Links: []settingsmenu.Link{
			{ID: settingsmenu.ApplicationInfosLinkID, IsDisplayed: true, HasNotification: true},
			{ID: "webhooks", IsDisplayed: false},
		},
	}}}, nil
}

func (f *fakeMenus) Refresh(_ context.Context, userID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, userID)
	return nil
}

func (f *fakeMenus) RefreshUser(ctx context.Context, userID snowflake.ID) error {
	return f.Refresh(ctx, userID)
}

type fakeInfo struct{}

func (fakeInfo) Information(_ context.Context, ed string) appinfo.Info {
	return appinfo.Info{CurrentVersion: "4.9.0", LatestVersion: "4.10.0", UpdateAvailable: true, Edition: ed}
}

type testServer struct {
	engine *gin.Engine
	tokens *auth.Tokens
	rbac   *fakeRBAC
	menus  *fakeMenus
}

func newTestServer(t *testing.T, limiter *ratelimit.UserLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokens(config.Config{AuthJWTSecret: "test-secret", AuthTokenTTL: time.Hour})
	require.NoError(t, err)

	ts := &testServer{
		engine: NewEngine(observability.Config{}, nil),
		tokens: tokens,
		rbac:   newFakeRBAC(),
		menus:  &fakeMenus{},
	}
	NewServer(ServerParams{
		Gin:     ts.engine,
		Log:     zap.NewNop(),
		Edition: edition.Community(),
		Tokens:  tokens,
		RBAC:    ts.rbac,
		Checker: permission.NewChecker(permission.Params{Log: zap.NewNop()}),
		Menus:   ts.menus,
		Info:    fakeInfo{},
		Limiter: limiter,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, userID snowflake.ID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := ts.tokens.Issue(userID, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/settings-menu", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings-menu", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad := httptest.NewRecorder()
	ts.engine.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestGetSettingsMenuHidesLinksByDefault(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/settings-menu", editorID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data settingsmenu.Menu `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Sections, 1)
	require.Len(t, resp.Data.Sections[0].Links, 1)
	assert.Equal(t, settingsmenu.ApplicationInfosLinkID, resp.Data.Sections[0].Links[0].ID)
	assert.True(t, resp.Data.Sections[0].Links[0].HasNotification)

	rec = ts.do(t, http.MethodGet, "/admin/settings-menu?include_hidden=true&wait=false", editorID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Sections[0].Links, 2)

	assert.Equal(t, []bool{true, false}, ts.menus.waits)
}

func TestGetSettingsMenuRejectsBadFlag(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/settings-menu?wait=maybe", editorID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "wait", payload.Errors[0].Field)
}

func TestMissingLinkIDSurfacesAsServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.menus.err = fmt.Errorf("section %q: %w", "broken", settingsmenu.ErrMissingLinkID)

	rec := ts.do(t, http.MethodGet, "/admin/settings-menu", editorID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "menu_contract_violation", decodeError(t, rec).Type)
}

func TestRefreshSettingsMenu(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/admin/settings-menu/refresh", editorID, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []snowflake.ID{editorID}, ts.menus.refreshed)
}

func TestGetMyPermissions(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/users/me/permissions", editorID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []rbacdomain.Permission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, rbacdomain.ActionLocaleRead, resp.Data[0].Action)
	assert.Nil(t, resp.Data[0].Subject)
}

func TestCheckPermissionsAnswersInOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/admin/permissions/check", editorID, checkPermissionsRequest{
		Permissions: []rbacdomain.Permission{
			{Action: rbacdomain.ActionRolesRead},
			{Action: rbacdomain.ActionLocaleRead},
			{Action: rbacdomain.ActionLocaleRead, Subject: rbacdomain.Subject("plugin::i18n.locale")},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[false,true,false]}`, rec.Body.String())
}

func TestCheckPermissionsValidatesBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/admin/permissions/check", editorID, checkPermissionsRequest{
		Permissions: []rbacdomain.Permission{{Action: "  "}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_action", decodeError(t, rec).Errors[0].Code)
}

func TestAssignRolesRequiresPermission(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/admin/users/100/roles", editorID, rbacdomain.AssignRolesRequest{
		Roles: []string{rbacdomain.RoleSuperAdmin},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.menus.refreshed)
}

func TestAssignRolesRefreshesTargetMenu(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/admin/users/200/roles", adminID, rbacdomain.AssignRolesRequest{
		Roles: []string{rbacdomain.RoleAuthor},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"200","roles":["author"]}}`, rec.Body.String())
	assert.True(t, slices.Contains(ts.menus.refreshed, editorID))
}

func TestAssignRolesErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/admin/users/999/roles", adminID, rbacdomain.AssignRolesRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/admin/users/abc/roles", adminID, rbacdomain.AssignRolesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/admin/users/200/roles", adminID, rbacdomain.AssignRolesRequest{
		Roles: []string{"janitor"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "roles", payload.Errors[0].Field)
	assert.Equal(t, "unknown_role", payload.Errors[0].Code)
}

func TestGetInformation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/admin/information", editorID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data appinfo.Info `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, edition.NameCommunity, resp.Data.Edition)
	assert.True(t, resp.Data.UpdateAvailable)
}

func TestRefreshIsRateLimitedPerUser(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ts := newTestServer(t, ratelimit.New(client, 0.001, 1))

	rec := ts.do(t, http.MethodPost, "/admin/settings-menu/refresh", editorID, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/settings-menu/refresh", editorID, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = ts.do(t, http.MethodPost, "/admin/settings-menu/refresh", adminID, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
