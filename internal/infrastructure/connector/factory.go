// Package connector builds platform connectors by kind.
package connector

import (
	"fmt"

	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
	"github.com/storeshift/backend/internal/infrastructure/connector/shopify"
	"github.com/storeshift/backend/internal/infrastructure/connector/woocommerce"
)

// Factory creates connectors sharing one set of HTTP options
type Factory struct {
	shopifyVersion string
	opts           []rest.Option
}

// NewFactory creates a factory. shopifyVersion may be empty.
func NewFactory(shopifyVersion string, opts ...rest.Option) *Factory {
	return &Factory{shopifyVersion: shopifyVersion, opts: opts}
}

// NewSource creates the read side of a connector
func (f *Factory) NewSource(kind migration.PlatformKind, cfg migration.ConnectionConfig) (migration.Source, error) {
	return NewSource(kind, cfg, f.shopifyVersion, f.opts...)
}

// NewDestination creates the write side of a connector
func (f *Factory) NewDestination(kind migration.PlatformKind, cfg migration.ConnectionConfig) (migration.Destination, error) {
	return NewDestination(kind, cfg, f.shopifyVersion, f.opts...)
}

// NewSource creates a source connector for kind
func NewSource(kind migration.PlatformKind, cfg migration.ConnectionConfig, shopifyVersion string, opts ...rest.Option) (migration.Source, error) {
	switch kind {
	case migration.PlatformWooCommerce:
		return woocommerce.New(cfg, opts...)
	case migration.PlatformShopify:
		return shopify.New(cfg, shopifyVersion, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", migration.ErrUnsupportedPlatform, kind)
	}
}

// NewDestination creates a destination connector for kind
func NewDestination(kind migration.PlatformKind, cfg migration.ConnectionConfig, shopifyVersion string, opts ...rest.Option) (migration.Destination, error) {
	switch kind {
	case migration.PlatformWooCommerce:
		return woocommerce.New(cfg, opts...)
	case migration.PlatformShopify:
		return shopify.New(cfg, shopifyVersion, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", migration.ErrUnsupportedPlatform, kind)
	}
}
