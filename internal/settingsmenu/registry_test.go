package settingsmenu

import (
	"context"
	"testing"

	"github.com/smallbiznis/console/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddLinks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.CreateSection(Section{ID: "plugin", Links: []Link{{ID: "one"}}}))
	require.NoError(t, r.AddLinks("plugin", Link{ID: "two"}))
	require.NoError(t, r.AddLinks(GlobalSectionID, Link{ID: "global-one"}))

	err := r.AddLinks("missing", Link{ID: "x"})
	assert.ErrorIs(t, err, ErrSectionNotFound)
	assert.ErrorIs(t, r.CreateSection(Section{}), ErrInvalidSection)

	snap := r.Snapshot()
	assert.Equal(t, []string{"global-one"}, ids(snap.Global))
	require.Len(t, snap.Sections, 1)
	assert.Equal(t, []string{"one", "two"}, ids(snap.Sections[0].Links))

	snap.Sections[0].Links[0].ID = "mutated"
	assert.Equal(t, "one", r.Snapshot().Sections[0].Links[0].ID)
}

func TestRegistryFromConfigLayersOnDefaults(t *testing.T) {
	subject := "plugin::documentation.settings"
	r, err := NewRegistryFromConfig(config.RegistryConfig{
		Permissions: map[string][]config.PermissionSpec{
			"webhooks": {{Action: "admin::webhooks.update"}},
		},
		Sections: []config.SectionSpec{
			{ID: GlobalSectionID, Links: []config.LinkSpec{{ID: "documentation", To: "/settings/documentation"}}},
			{ID: "email", Links: []config.LinkSpec{{ID: "email.templates", To: "/settings/email/templates"}}},
			{
				ID:             "documentation",
				LabelID:        "documentation.plugin.name",
				DefaultMessage: "Documentation",
				Links: []config.LinkSpec{{
					ID:          "documentation.settings",
					To:          "/settings/documentation",
					Permissions: []config.PermissionSpec{{Action: "plugin::documentation.settings.read", Subject: &subject}},
				}},
			},
		},
	})
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, []string{"internationalization", "media-library", "documentation"}, ids(snap.Global))

	sectionIDs := make([]string, 0, len(snap.Sections))
	for _, s := range snap.Sections {
		sectionIDs = append(sectionIDs, s.ID)
	}
	assert.Equal(t, []string{"email", "users-permissions", "documentation"}, sectionIDs)
	assert.Equal(t, []string{"email.settings", "email.templates"}, ids(snap.Sections[0].Links))
	assert.Equal(t, "Documentation", snap.Sections[2].IntlLabel.DefaultMessage)
	require.NotNil(t, snap.Sections[2].Links[0].Permissions[0].Subject)
	assert.Equal(t, subject, *snap.Sections[2].Links[0].Permissions[0].Subject)

	assert.Equal(t, "admin::webhooks.update", snap.Permissions["webhooks"][0].Action)
	assert.Contains(t, snap.Permissions, "roles")
}

type features map[string]bool

func (f features) HasFeature(name string) bool { return f[name] }

func TestCommunityLinksPromoteUnlicensedFeatures(t *testing.T) {
	links := CommunityLinks(features{FeatureSSO: true}, true)
	assert.Equal(t, []string{ApplicationInfosLinkID, "webhooks", "api-tokens", "transfer-tokens", "purchase-review-workflows"}, ids(links.Global))
	assert.Equal(t, []string{"roles", "users", "purchase-audit-logs"}, ids(links.Admin))
	assert.True(t, links.Admin[2].LicenseOnly)

	links = CommunityLinks(nil, false)
	assert.Equal(t, []string{"roles", "users"}, ids(links.Admin))
}

func TestEnterpriseProviderFiltersByLicense(t *testing.T) {
	links, err := enterpriseProvider{features: features{FeatureAuditLogs: true, FeatureSSO: true}}.Links(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sso"}, ids(links.Global))
	assert.Equal(t, []string{"auditLogs"}, ids(links.Admin))

	links, err = communityProvider{}.Links(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links.Global)
	assert.Empty(t, links.Admin)
}

func TestRegistryFromConfigRejectsReservedSection(t *testing.T) {
	_, err := NewRegistryFromConfig(config.RegistryConfig{
		Sections: []config.SectionSpec{{ID: PermissionsSectionID, Links: []config.LinkSpec{{ID: "extra"}}}},
	})
	assert.ErrorIs(t, err, ErrInvalidSection)
}
