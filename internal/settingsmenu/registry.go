package settingsmenu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/smallbiznis/console/internal/config"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
)

// Registry collects plugin-contributed settings links. Sections keep
// registration order and duplicate ids are not merged.
type Registry struct {
	mu          sync.RWMutex
	global      []Link
	sections    []Section
	permissions map[string][]rbacdomain.Permission
}

func NewRegistry() *Registry {
	return &Registry{permissions: map[string][]rbacdomain.Permission{}}
}

// NewDefaultRegistry holds the bundled plugins and the default permission
// map.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerDefaultPlugins(r)
	r.SetPermissions(DefaultPermissions())
	return r
}

// AddGlobalLinks appends links to the global section.
func (r *Registry) AddGlobalLinks(links ...Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, cloneLinks(links)...)
}

func (r *Registry) CreateSection(section Section) error {
	if strings.TrimSpace(section.ID) == "" {
		return ErrInvalidSection
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	section.Links = cloneLinks(section.Links)
	r.sections = append(r.sections, section)
	return nil
}

// AddLinks appends links to the first section registered under sectionID.
func (r *Registry) AddLinks(sectionID string, links ...Link) error {
	if sectionID == GlobalSectionID {
		r.AddGlobalLinks(links...)
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sections {
		if r.sections[i].ID == sectionID {
			r.sections[i].Links = append(r.sections[i].Links, cloneLinks(links)...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
}

// SetPermissions overrides required permissions per link id.
func (r *Registry) SetPermissions(perms map[string][]rbacdomain.Permission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range perms {
		r.permissions[id] = clonePermissions(p)
	}
}

// Snapshot is an immutable copy of the registry contents.
type Snapshot struct {
	Global      []Link
	Sections    []Section
	Permissions map[string][]rbacdomain.Permission
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms := make(map[string][]rbacdomain.Permission, len(r.permissions))
	for id, p := range r.permissions {
		perms[id] = clonePermissions(p)
	}
	return Snapshot{
		Global:      cloneLinks(r.global),
		Sections:    cloneSections(r.sections),
		Permissions: perms,
	}
}

// NewRegistryFromConfig layers the registry file on top of the defaults.
func NewRegistryFromConfig(reg config.RegistryConfig) (*Registry, error) {
	r := NewDefaultRegistry()

	for _, spec := range reg.Sections {
		links := make([]Link, 0, len(spec.Links))
		for _, l := range spec.Links {
			links = append(links, linkFromSpec(l))
		}

		if spec.ID == GlobalSectionID {
			r.AddGlobalLinks(links...)
			continue
		}
		if spec.ID == PermissionsSectionID {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidSection, spec.ID)
		}
		if err := r.AddLinks(spec.ID, links...); err == nil {
			continue
		}
		if err := r.CreateSection(Section{
			ID:        spec.ID,
			IntlLabel: IntlLabel{ID: spec.LabelID, DefaultMessage: spec.DefaultMessage},
			Links:     links,
		}); err != nil {
			return nil, err
		}
	}

	overrides := make(map[string][]rbacdomain.Permission, len(reg.Permissions))
	for id, specs := range reg.Permissions {
		overrides[id] = permissionsFromSpec(specs)
	}
	r.SetPermissions(overrides)
	return r, nil
}

func linkFromSpec(spec config.LinkSpec) Link {
	return Link{
		ID:          strings.TrimSpace(spec.ID),
		To:          spec.To,
		IntlLabel:   IntlLabel{ID: spec.LabelID, DefaultMessage: spec.DefaultMessage},
		Permissions: permissionsFromSpec(spec.Permissions),
	}
}

func permissionsFromSpec(specs []config.PermissionSpec) []rbacdomain.Permission {
	perms := make([]rbacdomain.Permission, 0, len(specs))
	for _, s := range specs {
		p := rbacdomain.Permission{Action: strings.TrimSpace(s.Action)}
		if s.Subject != nil && strings.TrimSpace(*s.Subject) != "" {
			p.Subject = rbacdomain.Subject(strings.TrimSpace(*s.Subject))
		}
		perms = append(perms, p)
	}
	return perms
}
