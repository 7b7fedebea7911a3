package settingsmenu

import (
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
)

const (
	FeatureSSO             = "sso"
	FeatureReviewWorkflows = "review-workflows"
	FeatureAuditLogs       = "audit-logs"
)

// FeatureSet reports licensed enterprise features. edition.Edition
// satisfies it.
type FeatureSet interface {
	HasFeature(feature string) bool
}

var (
	globalSectionLabel = IntlLabel{ID: "Settings.global", DefaultMessage: "Global Settings"}
	adminSectionLabel  = IntlLabel{ID: "Settings.permissions", DefaultMessage: "Administration Panel"}
)

func perm(action string) rbacdomain.Permission {
	return rbacdomain.Permission{Action: action}
}

// CommunityLinks is the community link set. When promote is set, enterprise
// features that are not licensed appear as license-only purchase links.
func CommunityLinks(features FeatureSet, promote bool) Links {
	links := Links{
		Global: []Link{
			{ID: ApplicationInfosLinkID, To: "/settings/application-infos", IntlLabel: IntlLabel{ID: "Settings.application.title", DefaultMessage: "Overview"}},
			{ID: "webhooks", To: "/settings/webhooks", IntlLabel: IntlLabel{ID: "Settings.webhooks.title", DefaultMessage: "Webhooks"}},
			{ID: "api-tokens", To: "/settings/api-tokens?sort=name:ASC", IntlLabel: IntlLabel{ID: "Settings.apiTokens.title", DefaultMessage: "API Tokens"}},
			{ID: "transfer-tokens", To: "/settings/transfer-tokens?sort=name:ASC", IntlLabel: IntlLabel{ID: "Settings.transferTokens.title", DefaultMessage: "Transfer Tokens"}},
		},
		Admin: []Link{
			{ID: "roles", To: "/settings/roles", IntlLabel: IntlLabel{ID: "global.roles", DefaultMessage: "Roles"}},
			{ID: "users", To: "/settings/users?pageSize=10&page=1&sort=firstname", IntlLabel: IntlLabel{ID: "global.users", DefaultMessage: "Users"}},
		},
	}
	if !promote {
		return links
	}

	licensed := func(feature string) bool {
		return features != nil && features.HasFeature(feature)
	}
	if !licensed(FeatureReviewWorkflows) {
		links.Global = append(links.Global, Link{
			ID:          "purchase-review-workflows",
			To:          "/settings/purchase-review-workflows",
			IntlLabel:   IntlLabel{ID: "Settings.review-workflows.page.title", DefaultMessage: "Review Workflows"},
			LicenseOnly: true,
		})
	}
	if !licensed(FeatureSSO) {
		links.Global = append(links.Global, Link{
			ID:          "purchase-sso",
			To:          "/settings/purchase-single-sign-on",
			IntlLabel:   IntlLabel{ID: "Settings.sso.title", DefaultMessage: "Single Sign-On"},
			LicenseOnly: true,
		})
	}
	if !licensed(FeatureAuditLogs) {
		links.Admin = append(links.Admin, Link{
			ID:          "purchase-audit-logs",
			To:          "/settings/purchase-audit-logs",
			IntlLabel:   IntlLabel{ID: "global.auditLogs", DefaultMessage: "Audit Logs"},
			LicenseOnly: true,
		})
	}
	return links
}

// EnterpriseLinks is the full enterprise link set before license filtering.
func EnterpriseLinks() Links {
	return Links{
		Global: []Link{
			{ID: "sso", To: "/settings/single-sign-on", IntlLabel: IntlLabel{ID: "Settings.sso.title", DefaultMessage: "Single Sign-On"}, Feature: FeatureSSO},
			{ID: "review-workflows", To: "/settings/review-workflows", IntlLabel: IntlLabel{ID: "Settings.review-workflows.page.title", DefaultMessage: "Review Workflows"}, Feature: FeatureReviewWorkflows},
		},
		Admin: []Link{
			{ID: "auditLogs", To: "/settings/audit-logs?pageSize=50&page=1&sort=date:DESC", IntlLabel: IntlLabel{ID: "global.auditLogs", DefaultMessage: "Audit Logs"}, Feature: FeatureAuditLogs},
		},
	}
}

// DefaultPermissions maps link ids to the permissions required to open them.
func DefaultPermissions() map[string][]rbacdomain.Permission {
	return map[string][]rbacdomain.Permission{
		ApplicationInfosLinkID: {},
		"webhooks":             {perm(rbacdomain.ActionWebhooksRead)},
		"api-tokens":           {perm(rbacdomain.ActionAPITokensAccess)},
		"transfer-tokens":      {perm(rbacdomain.ActionTransferTokensAccess)},
		"roles":                {perm(rbacdomain.ActionRolesRead)},
		"users":                {perm(rbacdomain.ActionUsersRead)},
		"sso":                  {perm(rbacdomain.ActionProviderLoginRead)},
		"review-workflows":     {perm(rbacdomain.ActionReviewWorkflowsRead)},
		"auditLogs":            {perm(rbacdomain.ActionAuditLogsRead)},

		"internationalization":                {perm(rbacdomain.ActionLocaleRead)},
		"media-library":                       {perm(rbacdomain.ActionUploadSettingsRead)},
		"email.settings":                      {perm(rbacdomain.ActionEmailSettingsRead)},
		"users-permissions.roles":             {perm(rbacdomain.ActionUPRolesRead)},
		"users-permissions.providers":         {perm(rbacdomain.ActionUPProvidersRead)},
		"users-permissions.email-templates":   {perm(rbacdomain.ActionUPEmailTemplatesRead)},
		"users-permissions.advanced-settings": {perm(rbacdomain.ActionUPAdvancedSettingsRead)},
	}
}

// registerDefaultPlugins contributes the links of the bundled plugins.
func registerDefaultPlugins(r *Registry) {
	r.AddGlobalLinks(
		Link{ID: "internationalization", To: "/settings/internationalization", IntlLabel: IntlLabel{ID: "i18n.plugin.name", DefaultMessage: "Internationalization"}},
		Link{ID: "media-library", To: "/settings/media-library", IntlLabel: IntlLabel{ID: "upload.plugin.name", DefaultMessage: "Media Library"}},
	)
	_ = r.CreateSection(Section{
		ID:        "email",
		IntlLabel: IntlLabel{ID: "email.SettingsNav.section-label", DefaultMessage: "Email Plugin"},
		Links: []Link{
			{ID: "email.settings", To: "/settings/email", IntlLabel: IntlLabel{ID: "email.Settings.email.plugin.title", DefaultMessage: "Configuration"}},
		},
	})
	_ = r.CreateSection(Section{
		ID:        "users-permissions",
		IntlLabel: IntlLabel{ID: "users-permissions.Settings.section-label", DefaultMessage: "Users & Permissions plugin"},
		Links: []Link{
			{ID: "users-permissions.roles", To: "/settings/users-permissions/roles", IntlLabel: IntlLabel{ID: "global.roles", DefaultMessage: "Roles"}},
			{ID: "users-permissions.providers", To: "/settings/users-permissions/providers", IntlLabel: IntlLabel{ID: "users-permissions.HeaderNav.link.providers", DefaultMessage: "Providers"}},
			{ID: "users-permissions.email-templates", To: "/settings/users-permissions/email-templates", IntlLabel: IntlLabel{ID: "users-permissions.HeaderNav.link.emailTemplates", DefaultMessage: "Email templates"}},
			{ID: "users-permissions.advanced-settings", To: "/settings/users-permissions/advanced-settings", IntlLabel: IntlLabel{ID: "users-permissions.HeaderNav.link.advancedSettings", DefaultMessage: "Advanced Settings"}},
		},
	})
}
