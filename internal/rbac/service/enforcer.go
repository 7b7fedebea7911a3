package service

import (
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Casbin trims trailing empty fields when loading rules, so absent values
// are stored as a placeholder.
const (
	emptyField         = "_"
	conditionSeparator = "|"
)

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func roleSubject(role string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(role))
}

func encodeRule(role string, p rbacdomain.Permission) []string {
	subject := emptyField
	if p.Subject != nil && *p.Subject != "" {
		subject = *p.Subject
	}
	cond := emptyField
	if len(p.Conditions) > 0 {
		cond = strings.Join(p.Conditions, conditionSeparator)
	}
	return []string{roleSubject(role), p.Action, subject, cond}
}

func decodeRule(rule []string) (rbacdomain.Permission, bool) {
	if len(rule) < 3 {
		return rbacdomain.Permission{}, false
	}
	perm := rbacdomain.Permission{Action: rule[1], Conditions: []string{}}
	if rule[2] != emptyField && rule[2] != "" {
		subject := rule[2]
		perm.Subject = &subject
	}
	if len(rule) > 3 && rule[3] != emptyField && rule[3] != "" {
		perm.Conditions = strings.Split(rule[3], conditionSeparator)
	}
	return perm, true
}

func objectFor(subject *string) string {
	if subject == nil || *subject == "" {
		return emptyField
	}
	return *subject
}

// defaultGrants are installed on every start. Existing rules are left alone.
var defaultGrants = map[string][]rbacdomain.Permission{
	rbacdomain.RoleSuperAdmin: {
		{Action: rbacdomain.ActionWebhooksRead},
		{Action: rbacdomain.ActionAPITokensAccess},
		{Action: rbacdomain.ActionTransferTokensAccess},
		{Action: rbacdomain.ActionRolesRead},
		{Action: rbacdomain.ActionUsersRead},
		{Action: rbacdomain.ActionUsersUpdate},
		{Action: rbacdomain.ActionProviderLoginRead},
		{Action: rbacdomain.ActionAuditLogsRead},
		{Action: rbacdomain.ActionReviewWorkflowsRead},
		{Action: rbacdomain.ActionLocaleRead},
		{Action: rbacdomain.ActionUploadSettingsRead},
		{Action: rbacdomain.ActionEmailSettingsRead},
		{Action: rbacdomain.ActionUPRolesRead},
		{Action: rbacdomain.ActionUPProvidersRead},
		{Action: rbacdomain.ActionUPEmailTemplatesRead},
		{Action: rbacdomain.ActionUPAdvancedSettingsRead},
	},
	rbacdomain.RoleEditor: {
		{Action: rbacdomain.ActionUploadSettingsRead},
		{Action: rbacdomain.ActionLocaleRead},
		{Action: rbacdomain.ActionUsersRead, Conditions: []string{rbacdomain.ConditionIsCreator}},
	},
	rbacdomain.RoleAuthor: {
		{Action: rbacdomain.ActionUploadSettingsRead, Conditions: []string{rbacdomain.ConditionHasSameRoleAsCreator}},
	},
}

// KnownRoles lists the roles created by default.
func KnownRoles() []string {
	return []string{rbacdomain.RoleSuperAdmin, rbacdomain.RoleEditor, rbacdomain.RoleAuthor}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, role := range KnownRoles() {
		for _, grant := range defaultGrants[role] {
			if _, err := enforcer.AddPolicy(encodeRule(role, grant)); err != nil {
				return err
			}
		}
	}
	return nil
}
