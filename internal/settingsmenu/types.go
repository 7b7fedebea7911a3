// Package settingsmenu resolves the admin settings navigation for a user:
// which sections exist, which links they hold, and which of those links the
// user may open.
package settingsmenu

import (
	"errors"

	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
)

const (
	GlobalSectionID      = "global"
	PermissionsSectionID = "permissions"

	// ApplicationInfosLinkID carries the update notification.
	ApplicationInfosLinkID = "000-application-infos"
)

var (
	ErrMissingLinkID   = errors.New("settings_link_missing_id")
	ErrSectionNotFound = errors.New("settings_section_not_found")
	ErrInvalidSection  = errors.New("invalid_settings_section")
)

type IntlLabel struct {
	ID             string `json:"id"`
	DefaultMessage string `json:"defaultMessage"`
}

// Link is one navigation entry. IsDisplayed is false until the permission
// check for this exact link resolved positively.
type Link struct {
	ID              string                  `json:"id"`
	To              string                  `json:"to"`
	IntlLabel       IntlLabel               `json:"intlLabel"`
	Permissions     []rbacdomain.Permission `json:"permissions"`
	IsDisplayed     bool                    `json:"isDisplayed"`
	HasNotification bool                    `json:"hasNotification"`
	LicenseOnly     bool                    `json:"licenseOnly,omitempty"`

	// Feature is the license feature an enterprise link depends on.
	Feature string `json:"-"`
}

type Section struct {
	ID        string    `json:"id"`
	IntlLabel IntlLabel `json:"intlLabel"`
	Links     []Link    `json:"links"`
}

// Links is the edition-specific link set: entries for the global section and
// for the administration panel section.
type Links struct {
	Global []Link `json:"global"`
	Admin  []Link `json:"admin"`
}

// Menu is the resolved navigation. Sections keep every link, stamped with
// IsDisplayed; use Visible for the filtered view.
type Menu struct {
	IsLoading bool      `json:"isLoading"`
	Sections  []Section `json:"menu"`
}

// Visible returns the menu with links filtered to displayed ones. Sections
// left empty are kept.
func (m Menu) Visible() Menu {
	out := Menu{IsLoading: m.IsLoading, Sections: make([]Section, 0, len(m.Sections))}
	for _, section := range m.Sections {
		filtered := Section{ID: section.ID, IntlLabel: section.IntlLabel, Links: make([]Link, 0, len(section.Links))}
		for _, link := range section.Links {
			if link.IsDisplayed {
				filtered.Links = append(filtered.Links, link)
			}
		}
		out.Sections = append(out.Sections, filtered)
	}
	return out
}

func cloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	for i, link := range links {
		link.Permissions = clonePermissions(link.Permissions)
		out[i] = link
	}
	return out
}

func clonePermissions(perms []rbacdomain.Permission) []rbacdomain.Permission {
	if perms == nil {
		return nil
	}
	out := make([]rbacdomain.Permission, len(perms))
	copy(out, perms)
	return out
}

func cloneSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, section := range sections {
		section.Links = cloneLinks(section.Links)
		out[i] = section
	}
	return out
}
