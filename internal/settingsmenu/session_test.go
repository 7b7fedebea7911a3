package settingsmenu

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedChecker blocks checks for grants named "slow" until released.
type gatedChecker struct {
	release chan struct{}
	started chan struct{}
	once    atomic.Bool
}

func (g *gatedChecker) HasPermissions(ctx context.Context, _ snowflake.ID, granted, required []rbacdomain.Permission) (bool, error) {
	for _, p := range granted {
		if p.Action == "slow" {
			if g.once.CompareAndSwap(false, true) {
				close(g.started)
			}
			<-g.release
			return true, nil
		}
	}
	return false, nil
}

func TestSessionLoadingThenReady(t *testing.T) {
	session := NewSession(newTestResolver(localChecker()))
	assert.True(t, session.State().IsLoading)

	in := Input{
		Granted:  []rbacdomain.Permission{{Action: rbacdomain.ActionRolesRead}},
		Links:    Links{Admin: []Link{{ID: "roles"}, {ID: "users"}}},
		Registry: Snapshot{Permissions: DefaultPermissions()},
	}
	require.NoError(t, session.Refresh(context.Background(), in))

	menu, err := session.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, menu.IsLoading)
	assert.Equal(t, []string{"roles"}, linkIDs(menu.Visible().Sections[1]))
}

func TestStaleBatchNeverOverwritesNewer(t *testing.T) {
	checker := &gatedChecker{release: make(chan struct{}), started: make(chan struct{})}
	session := NewSession(newTestResolver(checker))
	var discarded atomic.Int32
	session.OnDiscard(func() { discarded.Add(1) })

	links := Links{Global: []Link{{ID: "webhooks"}}}
	perms := Snapshot{Permissions: map[string][]rbacdomain.Permission{"webhooks": {{Action: "x"}}}}

	// First batch: the user still held a grant, and its check hangs.
	require.NoError(t, session.Refresh(context.Background(), Input{
		Granted:  []rbacdomain.Permission{{Action: "slow"}},
		Links:    links,
		Registry: perms,
	}))
	<-checker.started

	// Second batch: grant revoked, resolves immediately.
	require.NoError(t, session.Refresh(context.Background(), Input{
		Links:    links,
		Registry: perms,
	}))
	menu, err := session.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, menu.IsLoading)
	assert.False(t, menu.Sections[0].Links[0].IsDisplayed)

	close(checker.release)
	require.Eventually(t, func() bool { return discarded.Load() == 1 }, time.Second, 5*time.Millisecond)

	menu = session.State()
	assert.False(t, menu.IsLoading)
	assert.False(t, menu.Sections[0].Links[0].IsDisplayed)
}

func TestRefreshKeepsPreviousSectionsWhileLoading(t *testing.T) {
	checker := &gatedChecker{release: make(chan struct{}), started: make(chan struct{})}
	session := NewSession(newTestResolver(checker))

	in := Input{Links: Links{Global: []Link{{ID: "a"}}}}
	require.NoError(t, session.Refresh(context.Background(), in))
	first, err := session.Wait(context.Background())
	require.NoError(t, err)

	in.Granted = []rbacdomain.Permission{{Action: "slow"}}
	require.NoError(t, session.Refresh(context.Background(), in))
	<-checker.started

	state := session.State()
	assert.True(t, state.IsLoading)
	assert.Equal(t, first.Sections, state.Sections)

	close(checker.release)
	menu, err := session.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, menu.Sections[0].Links[0].IsDisplayed)
}
