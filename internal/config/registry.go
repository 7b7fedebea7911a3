package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PermissionSpec is a required permission as written in the registry file.
type PermissionSpec struct {
	Action  string  `mapstructure:"action"`
	Subject *string `mapstructure:"subject"`
}

// LinkSpec is a plugin-contributed settings link.
type LinkSpec struct {
	ID             string           `mapstructure:"id"`
	To             string           `mapstructure:"to"`
	LabelID        string           `mapstructure:"labelId"`
	DefaultMessage string           `mapstructure:"defaultMessage"`
	Permissions    []PermissionSpec `mapstructure:"permissions"`
}

// SectionSpec groups plugin links. A section with id "global" extends the
// global section instead of creating a new one.
type SectionSpec struct {
	ID             string     `mapstructure:"id"`
	LabelID        string     `mapstructure:"labelId"`
	DefaultMessage string     `mapstructure:"defaultMessage"`
	Links          []LinkSpec `mapstructure:"links"`
}

// RegistryConfig is the hot-reloadable part of the settings registry.
type RegistryConfig struct {
	Permissions map[string][]PermissionSpec `mapstructure:"permissions"`
	Sections    []SectionSpec               `mapstructure:"sections"`
}

type RegistryHolder struct {
	current  atomic.Value // holds RegistryConfig
	revision atomic.Uint64

	mu        sync.Mutex
	listeners []func(RegistryConfig)
}

// NewRegistryHolder reads settings.yml from the configured file or the usual
// search paths. A missing file yields an empty registry.
func NewRegistryHolder(cfg Config, log *zap.Logger) (*RegistryHolder, error) {
	log = log.Named("config.registry")
	v := viper.New()

	if cfg.RegistryFile != "" {
		v.SetConfigFile(cfg.RegistryFile)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/console")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &RegistryHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings registry: %w", err)
		}
		holder.current.Store(RegistryConfig{})
		return holder, nil
	}

	reg, err := decodeRegistry(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(reg)
	holder.revision.Add(1)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRegistry(v)
		if err != nil {
			log.Warn("settings registry reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Store(updated)
		log.Info("settings registry reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticRegistryHolder wraps a fixed registry, mostly for tests.
func NewStaticRegistryHolder(reg RegistryConfig) *RegistryHolder {
	holder := &RegistryHolder{}
	holder.current.Store(reg)
	return holder
}

func (h *RegistryHolder) Get() RegistryConfig {
	return h.current.Load().(RegistryConfig)
}

// Revision increases every time a new registry is stored.
func (h *RegistryHolder) Revision() uint64 {
	return h.revision.Load()
}

// Store replaces the registry and notifies listeners.
func (h *RegistryHolder) Store(reg RegistryConfig) {
	h.current.Store(reg)
	h.revision.Add(1)

	h.mu.Lock()
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(reg)
	}
}

// OnChange registers fn to run after every reload.
func (h *RegistryHolder) OnChange(fn func(RegistryConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func decodeRegistry(v *viper.Viper) (RegistryConfig, error) {
	var reg RegistryConfig
	if err := v.Unmarshal(&reg); err != nil {
		return RegistryConfig{}, fmt.Errorf("decode settings registry: %w", err)
	}
	if err := validateRegistry(reg); err != nil {
		return RegistryConfig{}, err
	}
	return reg, nil
}

// reservedSectionID is assembled from the admin links and cannot be extended
// from the registry file.
const reservedSectionID = "permissions"

func validateRegistry(reg RegistryConfig) error {
	for i, section := range reg.Sections {
		id := strings.TrimSpace(section.ID)
		if id == "" {
			return fmt.Errorf("sections[%d].id cannot be empty", i)
		}
		if id == reservedSectionID {
			return fmt.Errorf("sections[%d].id %q is reserved", i, id)
		}
	}
	for id, perms := range reg.Permissions {
		for i, perm := range perms {
			if strings.TrimSpace(perm.Action) == "" {
				return fmt.Errorf("permissions.%s[%d].action cannot be empty", id, i)
			}
		}
	}
	return nil
}
