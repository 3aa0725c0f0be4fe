package migration

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// PlatformKind represents the type of e-commerce platform a connector talks to
type PlatformKind string

const (
	// PlatformWooCommerce represents a WooCommerce (WordPress) store
	PlatformWooCommerce PlatformKind = "woocommerce"
	// PlatformShopify represents a Shopify store
	PlatformShopify PlatformKind = "shopify"
)

// AllPlatformKinds returns every supported platform
func AllPlatformKinds() []PlatformKind {
	return []PlatformKind{PlatformWooCommerce, PlatformShopify}
}

// IsValid returns true if the platform kind is supported
func (k PlatformKind) IsValid() bool {
	switch k {
	case PlatformWooCommerce, PlatformShopify:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformKind
func (k PlatformKind) String() string {
	return string(k)
}

// DisplayName returns a human-readable name for the platform
func (k PlatformKind) DisplayName() string {
	switch k {
	case PlatformWooCommerce:
		return "WooCommerce"
	case PlatformShopify:
		return "Shopify"
	default:
		return string(k)
	}
}

// ParsePlatformKind parses a platform kind, case-insensitively
func ParsePlatformKind(s string) (PlatformKind, error) {
	k := PlatformKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
	}
	return k, nil
}

// ---------------------------------------------------------------------------
// Role identifies which side of a project a connection belongs to
// ---------------------------------------------------------------------------

// Role is either the source or the destination side of a project
type Role string

const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	return r == RoleSource || r == RoleDestination
}

// ---------------------------------------------------------------------------
// ConnectionConfig
// ---------------------------------------------------------------------------

// Auth holds platform credentials. Token-auth platforms use Token; key/secret
// platforms use Key and Secret, plus User and AppPassword for the content and
// settings sub-APIs.
type Auth struct {
	Token       string `json:"token,omitempty"`
	Key         string `json:"key,omitempty"`
	Secret      string `json:"secret,omitempty"`
	User        string `json:"user,omitempty"`
	AppPassword string `json:"app_password,omitempty"`
}

// HasContentCredentials reports whether the secondary user/app-password pair is set
func (a Auth) HasContentCredentials() bool {
	return a.User != "" && a.AppPassword != ""
}

// ConnectionConfig is the decrypted connection configuration of one project side
type ConnectionConfig struct {
	URL  string `json:"url"`
	Auth Auth   `json:"auth"`
}

// IsZero reports whether the config has never been set
func (c ConnectionConfig) IsZero() bool {
	return c.URL == "" && c.Auth == (Auth{})
}

// Validate checks the config carries the auth shape the platform requires
func (c ConnectionConfig) Validate(kind PlatformKind) error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConnection)
	}
	switch kind {
	case PlatformShopify:
		if c.Auth.Token == "" {
			return fmt.Errorf("%w: shopify requires an access token", ErrInvalidConnection)
		}
	case PlatformWooCommerce:
		if c.Auth.Key == "" || c.Auth.Secret == "" {
			return fmt.Errorf("%w: woocommerce requires a consumer key and secret", ErrInvalidConnection)
		}
		if (c.Auth.User == "") != (c.Auth.AppPassword == "") {
			return fmt.Errorf("%w: user and app password must be set together", ErrInvalidConnection)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedPlatform, kind)
	}
	return nil
}
