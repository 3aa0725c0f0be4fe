package migration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is the part every normalized entity shares.
//
// OriginalData is the raw source payload and is only read for field mapping.
// MappedFields is computed by the orchestrator just before the entity is handed
// to a destination connector.
type Record struct {
	OriginalID   string   `json:"original_id"`
	NewID        string   `json:"new_id,omitempty"`
	OriginalData *Payload `json:"original_data,omitempty"`
	MappedFields *Payload `json:"mapped_fields,omitempty"`
}

// Base returns the shared record
func (r *Record) Base() *Record {
	return r
}

// Field reads a source value by key
func (r *Record) Field(key string) (any, bool) {
	return r.OriginalData.Get(key)
}

// Mapped reads a mapped destination value by key
func (r *Record) Mapped(key string) (any, bool) {
	return r.MappedFields.Get(key)
}

// Entity is implemented by every normalized record type
type Entity interface {
	EntityType() EntityType
	Base() *Record
}

// Product is a catalog item
type Product struct {
	Record
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Status        string          `json:"status,omitempty"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	RegularPrice  decimal.Decimal `json:"regular_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockQuantity *int            `json:"stock_quantity,omitempty"`
	CategoryIDs   []string        `json:"category_ids,omitempty"`
}

func (*Product) EntityType() EntityType { return EntityProducts }

// Customer is a registered shopper
type Customer struct {
	Record
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (*Customer) EntityType() EntityType { return EntityCustomers }

// LineItem is one row of an order
type LineItem struct {
	ProductID string          `json:"product_id,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a placed order
type Order struct {
	Record
	Number     string          `json:"number,omitempty"`
	Status     string          `json:"status,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Total      decimal.Decimal `json:"total"`
	CustomerID string          `json:"customer_id,omitempty"`
	Email      string          `json:"email,omitempty"`
	LineItems  []LineItem      `json:"line_items,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

func (*Order) EntityType() EntityType { return EntityOrders }

// Post is a blog post
type Post struct {
	Record
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
}

func (*Post) EntityType() EntityType { return EntityPosts }

// Page is a static content page
type Page struct {
	Record
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
}

func (*Page) EntityType() EntityType { return EntityPages }

// Category is a product taxonomy node
type Category struct {
	Record
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	Description string `json:"description,omitempty"`
}

func (*Category) EntityType() EntityType { return EntityCategories }

// ShippingZone groups shipping locations
type ShippingZone struct {
	Record
	Name      string   `json:"name"`
	Locations []string `json:"locations,omitempty"`
}

func (*ShippingZone) EntityType() EntityType { return EntityShippingZones }

// TaxRate is one tax rule
type TaxRate struct {
	Record
	Name    string          `json:"name,omitempty"`
	Country string          `json:"country,omitempty"`
	State   string          `json:"state,omitempty"`
	Rate    decimal.Decimal `json:"rate"`
	Class   string          `json:"class,omitempty"`
}

func (*TaxRate) EntityType() EntityType { return EntityTaxRates }

// Coupon is a discount code
type Coupon struct {
	Record
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	UsageLimit   *int            `json:"usage_limit,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

func (*Coupon) EntityType() EntityType { return EntityCoupons }

// StoreSettings is the singleton store configuration
type StoreSettings struct {
	Record
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Currency string `json:"currency,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

func (*StoreSettings) EntityType() EntityType { return EntityStoreSettings }

// NewEntity creates an empty entity of the given type around rec
func NewEntity(t EntityType, rec Record) (Entity, error) {
	switch t {
	case EntityProducts:
		return &Product{Record: rec}, nil
	case EntityCustomers:
		return &Customer{Record: rec}, nil
	case EntityOrders:
		return &Order{Record: rec}, nil
	case EntityPosts:
		return &Post{Record: rec}, nil
	case EntityPages:
		return &Page{Record: rec}, nil
	case EntityCategories:
		return &Category{Record: rec}, nil
	case EntityShippingZones:
		return &ShippingZone{Record: rec}, nil
	case EntityTaxRates:
		return &TaxRate{Record: rec}, nil
	case EntityCoupons:
		return &Coupon{Record: rec}, nil
	case EntityStoreSettings:
		return &StoreSettings{Record: rec}, nil
	default:
		return nil, ErrInvalidEntityType
	}
}
