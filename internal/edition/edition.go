// Package edition decides once, at startup, whether the process runs the
// community or the enterprise edition.
package edition

import (
	"slices"
	"strings"
	"time"

	"github.com/smallbiznis/console/internal/config"
	"go.uber.org/zap"
)

const (
	NameCommunity  = config.EditionCommunity
	NameEnterprise = config.EditionEnterprise
)

// Edition is the runtime feature flag. The zero value is community.
type Edition struct {
	enterprise bool
	license    *License
}

func Community() Edition {
	return Edition{}
}

func Enterprise(license License) Edition {
	return Edition{enterprise: true, license: &license}
}

func (e Edition) IsEnterprise() bool {
	return e.enterprise
}

func (e Edition) Name() string {
	if e.enterprise {
		return NameEnterprise
	}
	return NameCommunity
}

// License returns the license backing an enterprise edition.
func (e Edition) License() (License, bool) {
	if e.license == nil {
		return License{}, false
	}
	return *e.license, true
}

// HasFeature reports whether the license grants feature. Licenses without an
// explicit feature list grant every enterprise feature.
func (e Edition) HasFeature(feature string) bool {
	if !e.enterprise || e.license == nil {
		return false
	}
	if len(e.license.Features) == 0 {
		return true
	}
	return slices.Contains(e.license.Features, strings.TrimSpace(feature))
}

// Resolve builds the edition from configuration. Enterprise requires a valid
// license; anything else degrades to community with a warning so the admin
// stays usable.
func Resolve(cfg config.Config, log *zap.Logger) Edition {
	log = log.Named("edition")
	if !cfg.IsEnterprise() {
		log.Info("running community edition")
		return Community()
	}

	verifier, err := NewVerifier(cfg.LicenseSecret, cfg.LicensePublicKeyPEM)
	if err != nil {
		log.Warn("enterprise edition requested without a usable license key, falling back to community", zap.Error(err))
		return Community()
	}
	license, err := verifier.Verify(cfg.LicenseKey, time.Now())
	if err != nil {
		log.Warn("enterprise license rejected, falling back to community", zap.Error(err))
		return Community()
	}

	log.Info("running enterprise edition",
		zap.String("license_id", license.ID),
		zap.String("organization", license.Organization),
		zap.Time("expires_at", license.ExpiresAt),
	)
	return Enterprise(license)
}
