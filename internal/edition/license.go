package edition

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrLicenseMissing  = errors.New("license_missing")
	ErrLicenseInvalid  = errors.New("license_invalid")
	ErrLicenseExpired  = errors.New("license_expired")
	ErrVerifierMissing = errors.New("license_verifier_missing")
	ErrUnsupportedTier = errors.New("license_unsupported_tier")
)

var (
	supportedTiers      = []string{"enterprise", "gold", "silver", "bronze"}
	licenseSigningAlgos = []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodEdDSA.Alg()}
)

// License is the decoded enterprise license token.
type License struct {
	ID           string
	Organization string
	Tier         string
	Features     []string
	Seats        int
	ExpiresAt    time.Time
}

type licenseClaims struct {
	Organization string   `json:"org"`
	Tier         string   `json:"tier"`
	Features     []string `json:"features,omitempty"`
	Seats        int      `json:"seats,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks license tokens signed either with a shared HMAC secret or
// an Ed25519 key pair.
type Verifier struct {
	secret    []byte
	publicKey ed25519.PublicKey
}

func NewVerifier(secret, publicKeyPEM string) (*Verifier, error) {
	v := &Verifier{}
	if s := strings.TrimSpace(secret); s != "" {
		v.secret = []byte(s)
	}
	if pem := strings.TrimSpace(publicKeyPEM); pem != "" {
		key, err := jwt.ParseEdPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("parse license public key: %w", err)
		}
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("license public key is %T, want ed25519", key)
		}
		v.publicKey = pub
	}
	if v.secret == nil && v.publicKey == nil {
		return nil, ErrVerifierMissing
	}
	return v, nil
}

// Verify parses token and checks signature, expiry and tier at now.
func (v *Verifier) Verify(token string, now time.Time) (License, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return License{}, ErrLicenseMissing
	}

	claims := &licenseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods(licenseSigningAlgos),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return License{}, ErrLicenseExpired
		}
		return License{}, fmt.Errorf("%w: %v", ErrLicenseInvalid, err)
	}
	if !parsed.Valid {
		return License{}, ErrLicenseInvalid
	}

	tier := strings.ToLower(strings.TrimSpace(claims.Tier))
	if !slices.Contains(supportedTiers, tier) {
		return License{}, fmt.Errorf("%w: %q", ErrUnsupportedTier, claims.Tier)
	}

	license := License{
		ID:           claims.ID,
		Organization: claims.Organization,
		Tier:         tier,
		Features:     claims.Features,
		Seats:        claims.Seats,
	}
	if claims.ExpiresAt != nil {
		license.ExpiresAt = claims.ExpiresAt.Time
	}
	return license, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret == nil {
			return nil, errors.New("hmac license tokens are not accepted")
		}
		return v.secret, nil
	case *jwt.SigningMethodEd25519:
		if v.publicKey == nil {
			return nil, errors.New("ed25519 license tokens are not accepted")
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// IssueLicense signs a license with secret. Used by the CLI and tests.
func IssueLicense(secret string, license License) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrVerifierMissing
	}
	claims := licenseClaims{
		Organization: license.Organization,
		Tier:         license.Tier,
		Features:     license.Features,
		Seats:        license.Seats,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        license.ID,
			ExpiresAt: jwt.NewNumericDate(license.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}
