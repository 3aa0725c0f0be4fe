package migration

import (
	"fmt"
	"strings"
)

// EntityType is one of the fixed categories of data being migrated
type EntityType string

const (
	EntityStoreSettings EntityType = "store_settings"
	EntityCategories    EntityType = "categories"
	EntityProducts      EntityType = "products"
	EntityCustomers     EntityType = "customers"
	EntityShippingZones EntityType = "shipping_zones"
	EntityTaxRates      EntityType = "tax_rates"
	EntityCoupons       EntityType = "coupons"
	EntityOrders        EntityType = "orders"
	EntityPages         EntityType = "pages"
	EntityPosts         EntityType = "posts"
)

// MigrationOrder is the dependency-respecting order entity types are migrated in.
// Settings and taxonomy come before products, shipping/tax/coupons before orders,
// and content last.
var MigrationOrder = []EntityType{
	EntityStoreSettings,
	EntityCategories,
	EntityProducts,
	EntityCustomers,
	EntityShippingZones,
	EntityTaxRates,
	EntityCoupons,
	EntityOrders,
	EntityPages,
	EntityPosts,
}

// IsValid returns true if the entity type is known
func (t EntityType) IsValid() bool {
	for _, known := range MigrationOrder {
		if t == known {
			return true
		}
	}
	return false
}

// IsSingleton reports whether the entity type holds a single record per store
func (t EntityType) IsSingleton() bool {
	return t == EntityStoreSettings
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// DisplayName returns a human-readable, plural name for log lines
func (t EntityType) DisplayName() string {
	switch t {
	case EntityStoreSettings:
		return "store settings"
	case EntityShippingZones:
		return "shipping zones"
	case EntityTaxRates:
		return "tax rates"
	default:
		return string(t)
	}
}

// ParseEntityType parses an entity type name as used in URLs and config
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, s)
	}
	return t, nil
}
