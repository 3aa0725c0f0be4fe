package migration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformKind_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		kind     PlatformKind
		expected bool
	}{
		{"WooCommerce valid", PlatformWooCommerce, true},
		{"Shopify valid", PlatformShopify, true},
		{"Unknown", PlatformKind("magento"), false},
		{"Empty", PlatformKind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.IsValid())
		})
	}
}

func TestParsePlatformKind(t *testing.T) {
	k, err := ParsePlatformKind(" Shopify ")
	require.NoError(t, err)
	assert.Equal(t, PlatformShopify, k)

	_, err = ParsePlatformKind("bigcommerce")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kind    PlatformKind
		cfg     ConnectionConfig
		wantErr bool
	}{
		{"shopify with token", PlatformShopify, ConnectionConfig{URL: "https://s.myshopify.com", Auth: Auth{Token: "shpat"}}, false},
		{"shopify without token", PlatformShopify, ConnectionConfig{URL: "https://s.myshopify.com"}, true},
		{"woo with key and secret", PlatformWooCommerce, ConnectionConfig{URL: "https://w.example", Auth: Auth{Key: "ck", Secret: "cs"}}, false},
		{"woo with app password pair", PlatformWooCommerce, ConnectionConfig{URL: "https://w.example", Auth: Auth{Key: "ck", Secret: "cs", User: "admin", AppPassword: "abcd"}}, false},
		{"woo with half app password pair", PlatformWooCommerce, ConnectionConfig{URL: "https://w.example", Auth: Auth{Key: "ck", Secret: "cs", User: "admin"}}, true},
		{"missing url", PlatformWooCommerce, ConnectionConfig{Auth: Auth{Key: "ck", Secret: "cs"}}, true},
		{"unknown platform", PlatformKind("x"), ConnectionConfig{URL: "https://x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("shipping-zones")
	require.NoError(t, err)
	assert.Equal(t, EntityShippingZones, et)
	assert.Equal(t, "shipping zones", et.DisplayName())

	_, err = ParseEntityType("invoices")
	assert.ErrorIs(t, err, ErrInvalidEntityType)
}

func TestMigrationOrder(t *testing.T) {
	index := make(map[EntityType]int)
	for i, et := range MigrationOrder {
		index[et] = i
	}
	assert.Len(t, index, 10)
	assert.Less(t, index[EntityCategories], index[EntityProducts])
	assert.Less(t, index[EntityCoupons], index[EntityOrders])
	assert.Less(t, index[EntityTaxRates], index[EntityOrders])
	assert.Less(t, index[EntityShippingZones], index[EntityOrders])
	assert.Equal(t, EntityPosts, MigrationOrder[len(MigrationOrder)-1])
	assert.True(t, EntityStoreSettings.IsSingleton())
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("401 Unauthorized")
	connErr := &ConnectionError{Platform: PlatformShopify, Message: "invalid token", Err: cause}
	assert.ErrorIs(t, connErr, ErrConnection)
	assert.ErrorIs(t, connErr, cause)
	assert.Equal(t, "connect to Shopify: invalid token", connErr.Error())

	assert.ErrorIs(t, &DecryptionError{Err: cause}, ErrDecryption)
	assert.ErrorIs(t, &ItemImportError{OriginalID: "1", Err: cause}, ErrItemImport)
	assert.ErrorIs(t, &SchemaFetchError{Platform: PlatformShopify, EntityType: EntityProducts, Err: cause}, ErrSchemaFetch)

	var target *ConnectionError
	wrapped := errors.Join(errors.New("run aborted"), connErr)
	assert.ErrorAs(t, wrapped, &target)
}
