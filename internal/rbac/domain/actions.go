package domain

// Settings permissions understood by the admin panel.
const (
	ActionWebhooksRead           = "admin::webhooks.read"
	ActionAPITokensAccess        = "admin::api-tokens.access"
	ActionTransferTokensAccess   = "admin::transfer.tokens.access"
	ActionRolesRead              = "admin::roles.read"
	ActionUsersRead              = "admin::users.read"
	ActionUsersUpdate            = "admin::users.update"
	ActionProviderLoginRead      = "admin::provider-login.read"
	ActionAuditLogsRead          = "admin::audit-logs.read"
	ActionReviewWorkflowsRead    = "admin::review-workflows.read"
	ActionLocaleRead             = "plugin::i18n.locale.read"
	ActionUploadSettingsRead     = "plugin::upload.settings.read"
	ActionEmailSettingsRead      = "plugin::email.settings.read"
	ActionUPRolesRead            = "plugin::users-permissions.roles.read"
	ActionUPProvidersRead        = "plugin::users-permissions.providers.read"
	ActionUPEmailTemplatesRead   = "plugin::users-permissions.email-templates.read"
	ActionUPAdvancedSettingsRead = "plugin::users-permissions.advanced-settings.read"
)

const (
	ConditionIsCreator            = "admin::is-creator"
	ConditionHasSameRoleAsCreator = "admin::has-same-role-as-creator"
)
