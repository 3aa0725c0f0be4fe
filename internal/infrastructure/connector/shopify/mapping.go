package shopify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
)

var hundred = decimal.NewFromInt(100)

// exportFields are the documented top-level fields per entity type
var exportFields = map[migration.EntityType][]string{
	migration.EntityProducts: {
		"id", "title", "handle", "body_html", "vendor", "product_type", "status", "tags", "variants", "options", "images",
	},
	migration.EntityCategories:    {"id", "title", "handle", "body_html", "published_at", "sort_order", "image"},
	migration.EntityCustomers:     {"id", "email", "first_name", "last_name", "phone", "tags", "addresses", "accepts_marketing"},
	migration.EntityOrders:        {"id", "name", "order_number", "email", "financial_status", "fulfillment_status", "currency", "total_price", "customer", "line_items", "created_at"},
	migration.EntityCoupons:       {"id", "title", "value_type", "value", "usage_limit", "starts_at", "ends_at", "target_type"},
	migration.EntityTaxRates:      {"id", "name", "code", "tax", "tax_name", "provinces"},
	migration.EntityShippingZones: {"id", "name", "countries", "weight_based_shipping_rates", "price_based_shipping_rates"},
	migration.EntityStoreSettings: {"name", "email", "currency", "address1", "city", "zip", "country_code", "iana_timezone"},
	migration.EntityPosts:         {"id", "title", "handle", "body_html", "author", "tags", "published_at"},
	migration.EntityPages:         {"id", "title", "handle", "body_html", "author", "published_at"},
}

// importFields are the fields accepted on create
var importFields = map[migration.EntityType][]string{
	migration.EntityProducts:   {"title", "handle", "body_html", "vendor", "product_type", "status", "tags", "variants"},
	migration.EntityCategories: {"title", "handle", "body_html", "published"},
	migration.EntityCustomers:  {"email", "first_name", "last_name", "phone", "tags", "addresses"},
	migration.EntityOrders:     {"email", "financial_status", "currency", "line_items", "customer", "tags"},
	migration.EntityCoupons:    {"title", "value_type", "value", "usage_limit", "starts_at", "ends_at"},
	migration.EntityPosts:      {"title", "handle", "body_html", "author", "tags", "published"},
	migration.EntityPages:      {"title", "handle", "body_html", "published"},
}

// requiredFields must be present in a create request
var requiredFields = map[migration.EntityType][]string{
	migration.EntityProducts:   {"title"},
	migration.EntityCategories: {"title"},
	migration.EntityCustomers:  {"email"},
	migration.EntityOrders:     {"line_items"},
	migration.EntityCoupons:    {"title", "value"},
	migration.EntityPosts:      {"title"},
	migration.EntityPages:      {"title"},
}

// ---------------------------------------------------------------------------
// Read mapping
// ---------------------------------------------------------------------------

func toEntity(t migration.EntityType, p *migration.Payload) (migration.Entity, error) {
	rec := migration.Record{OriginalID: rest.String(p, "id"), OriginalData: p}
	e, err := migration.NewEntity(t, rec)
	if err != nil {
		return nil, err
	}

	switch x := e.(type) {
	case *migration.Product:
		x.Name = rest.String(p, "title")
		x.Status = rest.String(p, "status")
		x.Description = rest.String(p, "body_html")
		if variants := rest.Objects(p, "variants"); len(variants) > 0 {
			v := variants[0]
			x.SKU = rest.AsString(v["sku"])
			x.Price = rest.ParseDecimal(rest.AsString(v["price"]))
			compareAt := rest.ParseDecimal(rest.AsString(v["compare_at_price"]))
			if compareAt.GreaterThan(x.Price) {
				x.RegularPrice = compareAt
				x.SalePrice = x.Price
			} else {
				x.RegularPrice = x.Price
			}
			if q, ok := v["inventory_quantity"]; ok && q != nil {
				n := int(rest.ParseDecimal(rest.AsString(q)).IntPart())
				x.StockQuantity = &n
			}
		}
	case *migration.Customer:
		x.Email = rest.String(p, "email")
		x.FirstName = rest.String(p, "first_name")
		x.LastName = rest.String(p, "last_name")
		x.Phone = rest.String(p, "phone")
	case *migration.Order:
		x.Number = rest.String(p, "order_number")
		x.Status = rest.String(p, "financial_status")
		x.Currency = rest.String(p, "currency")
		x.Total = rest.Decimal(p, "total_price")
		x.CustomerID = rest.String(p, "customer", "id")
		x.Email = rest.String(p, "email")
		x.CreatedAt = rest.Time(p, "created_at")
		for _, li := range rest.Objects(p, "line_items") {
			x.LineItems = append(x.LineItems, migration.LineItem{
				ProductID: rest.AsString(li["product_id"]),
				SKU:       rest.AsString(li["sku"]),
				Name:      rest.AsString(li["title"]),
				Quantity:  int(rest.ParseDecimal(rest.AsString(li["quantity"])).IntPart()),
				Price:     rest.ParseDecimal(rest.AsString(li["price"])),
			})
		}
	case *migration.Post:
		x.Title = rest.String(p, "title")
		x.Slug = rest.String(p, "handle")
		x.Status = publishStatus(rest.String(p, "published_at"))
		x.Content = rest.String(p, "body_html")
	case *migration.Page:
		x.Title = rest.String(p, "title")
		x.Slug = rest.String(p, "handle")
		x.Status = publishStatus(rest.String(p, "published_at"))
		x.Content = rest.String(p, "body_html")
	case *migration.Category:
		x.Name = rest.String(p, "title")
		x.Slug = rest.String(p, "handle")
		x.Description = rest.String(p, "body_html")
	case *migration.ShippingZone:
		x.Name = rest.String(p, "name")
		for _, country := range rest.Objects(p, "countries") {
			x.Locations = append(x.Locations, rest.AsString(country["code"]))
		}
	case *migration.TaxRate:
		// countries.json carries one rate per country as a fraction
		x.Name = rest.String(p, "tax_name")
		if x.Name == "" {
			x.Name = rest.String(p, "name")
		}
		x.Country = rest.String(p, "code")
		x.Rate = rest.Decimal(p, "tax").Mul(hundred)
	case *migration.Coupon:
		x.Code = rest.String(p, "title")
		x.DiscountType = rest.String(p, "value_type")
		x.Amount = rest.Decimal(p, "value").Abs()
		x.UsageLimit = rest.IntPtr(p, "usage_limit")
		x.ExpiresAt = rest.Time(p, "ends_at")
	}
	return e, nil
}

func storeSettingsFromShop(p *migration.Payload) *migration.StoreSettings {
	s := &migration.StoreSettings{Record: migration.Record{OriginalID: rest.String(p, "id"), OriginalData: p}}
	if s.OriginalID == "" {
		s.OriginalID = "shop"
	}
	s.Name = rest.String(p, "name")
	s.Email = rest.String(p, "email")
	s.Currency = rest.String(p, "currency")
	s.Address = rest.String(p, "address1")
	s.City = rest.String(p, "city")
	s.Postcode = rest.String(p, "zip")
	s.Country = rest.String(p, "country_code")
	s.Timezone = rest.String(p, "iana_timezone")
	return s
}

func publishStatus(publishedAt string) string {
	if publishedAt == "" {
		return "draft"
	}
	return "publish"
}

// ---------------------------------------------------------------------------
// Write mapping
// ---------------------------------------------------------------------------

func requestBody(e migration.Entity) (map[string]any, error) {
	body := rest.Body(e.Base(), defaults(e))
	if missing := rest.Missing(body, requiredFields[e.EntityType()]...); missing != "" {
		return nil, fmt.Errorf("missing required field %q", missing)
	}
	return body, nil
}

func defaults(e migration.Entity) map[string]any {
	switch x := e.(type) {
	case *migration.Product:
		variant := map[string]any{}
		switch {
		case !x.SalePrice.IsZero() && !x.RegularPrice.IsZero():
			variant["price"] = x.SalePrice.String()
			variant["compare_at_price"] = x.RegularPrice.String()
		case !x.RegularPrice.IsZero():
			variant["price"] = x.RegularPrice.String()
		case !x.Price.IsZero():
			variant["price"] = x.Price.String()
		}
		if x.SKU != "" {
			variant["sku"] = x.SKU
		}
		if x.StockQuantity != nil {
			variant["inventory_management"] = "shopify"
			variant["inventory_quantity"] = *x.StockQuantity
		}
		d := map[string]any{
			"title":     x.Name,
			"body_html": x.Description,
			"status":    productStatus(x.Status),
		}
		if len(variant) > 0 {
			d["variants"] = []any{variant}
		}
		return d
	case *migration.Customer:
		return map[string]any{
			"email":      x.Email,
			"first_name": x.FirstName,
			"last_name":  x.LastName,
			"phone":      x.Phone,
		}
	case *migration.Order:
		items := make([]any, 0, len(x.LineItems))
		for _, li := range x.LineItems {
			item := map[string]any{
				"title":    li.Name,
				"quantity": li.Quantity,
				"price":    li.Price.StringFixed(2),
			}
			if li.SKU != "" {
				item["sku"] = li.SKU
			}
			items = append(items, item)
		}
		return map[string]any{
			"email":            x.Email,
			"currency":         x.Currency,
			"financial_status": financialStatus(x.Status),
			"line_items":       items,
		}
	case *migration.Post:
		return map[string]any{"title": x.Title, "handle": x.Slug, "body_html": x.Content, "published": x.Status == "publish"}
	case *migration.Page:
		return map[string]any{"title": x.Title, "handle": x.Slug, "body_html": x.Content, "published": x.Status == "publish"}
	case *migration.Category:
		return map[string]any{"title": x.Name, "handle": x.Slug, "body_html": x.Description}
	case *migration.Coupon:
		d := map[string]any{
			"title":              x.Code,
			"value_type":         valueType(x.DiscountType),
			"target_type":        "line_item",
			"target_selection":   "all",
			"allocation_method":  "across",
			"customer_selection": "all",
			"starts_at":          time.Now().UTC().Format(time.RFC3339),
		}
		if !x.Amount.IsZero() {
			d["value"] = x.Amount.Abs().Neg().String()
		}
		if x.UsageLimit != nil {
			d["usage_limit"] = *x.UsageLimit
		}
		if x.ExpiresAt != nil {
			d["ends_at"] = x.ExpiresAt.UTC().Format(time.RFC3339)
		}
		return d
	default:
		return map[string]any{}
	}
}

// financialStatus keeps Shopify financial states and translates WooCommerce
// order states.
func financialStatus(s string) string {
	switch s {
	case "pending", "authorized", "partially_paid", "paid", "partially_refunded", "refunded", "voided":
		return s
	case "processing", "completed":
		return "paid"
	case "on-hold", "":
		return "pending"
	case "cancelled", "failed":
		return "voided"
	default:
		return "pending"
	}
}

func productStatus(s string) string {
	switch s {
	case "active", "draft", "archived":
		return s
	case "publish":
		return "active"
	case "private":
		return "archived"
	default:
		return "draft"
	}
}

func valueType(s string) string {
	switch s {
	case "percent", "percentage":
		return "percentage"
	default:
		return "fixed_amount"
	}
}
