package woocommerce

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
)

// exportFields are the documented top-level fields per entity type
var exportFields = map[migration.EntityType][]string{
	migration.EntityProducts: {
		"id", "name", "slug", "type", "status", "description", "short_description", "sku",
		"price", "regular_price", "sale_price", "manage_stock", "stock_quantity", "weight", "categories", "images",
	},
	migration.EntityCategories:    {"id", "name", "slug", "parent", "description", "image"},
	migration.EntityCustomers:     {"id", "email", "first_name", "last_name", "username", "billing", "shipping"},
	migration.EntityOrders:        {"id", "number", "status", "currency", "total", "customer_id", "billing", "shipping", "line_items", "date_created"},
	migration.EntityCoupons:       {"id", "code", "discount_type", "amount", "usage_limit", "date_expires", "description"},
	migration.EntityTaxRates:      {"id", "country", "state", "postcode", "city", "rate", "name", "priority", "class"},
	migration.EntityShippingZones: {"id", "name", "order"},
	migration.EntityStoreSettings: settingsKeys,
	migration.EntityPosts:         {"id", "title", "slug", "status", "content", "excerpt", "date"},
	migration.EntityPages:         {"id", "title", "slug", "status", "content", "parent", "date"},
}

// importFields are the fields accepted on create
var importFields = map[migration.EntityType][]string{
	migration.EntityProducts: {
		"name", "slug", "type", "status", "description", "short_description", "sku",
		"regular_price", "sale_price", "manage_stock", "stock_quantity", "weight", "categories",
	},
	migration.EntityCategories:    {"name", "slug", "parent", "description"},
	migration.EntityCustomers:     {"email", "first_name", "last_name", "username", "billing", "shipping"},
	migration.EntityOrders:        {"status", "currency", "customer_id", "billing", "shipping", "line_items", "set_paid"},
	migration.EntityCoupons:       {"code", "discount_type", "amount", "usage_limit", "date_expires", "description"},
	migration.EntityTaxRates:      {"country", "state", "postcode", "city", "rate", "name", "priority", "class"},
	migration.EntityShippingZones: {"name", "order"},
	migration.EntityStoreSettings: settingsKeys,
	migration.EntityPosts:         {"title", "slug", "status", "content", "excerpt"},
	migration.EntityPages:         {"title", "slug", "status", "content"},
}

// settingsKeys are the general settings carried by store settings, in write order
var settingsKeys = []string{
	"woocommerce_store_address",
	"woocommerce_store_city",
	"woocommerce_store_postcode",
	"woocommerce_default_country",
	"woocommerce_currency",
	"woocommerce_email_from_address",
}

// requiredFields must be present in a create request
var requiredFields = map[migration.EntityType][]string{
	migration.EntityProducts:      {"name"},
	migration.EntityCategories:    {"name"},
	migration.EntityCustomers:     {"email"},
	migration.EntityOrders:        {"line_items"},
	migration.EntityCoupons:       {"code"},
	migration.EntityTaxRates:      {"rate"},
	migration.EntityShippingZones: {"name"},
	migration.EntityPosts:         {"title"},
	migration.EntityPages:         {"title"},
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
		x.Name = rest.String(p, "name")
		x.SKU = rest.String(p, "sku")
		x.Status = rest.String(p, "status")
		x.Description = rest.String(p, "description")
		x.Price = rest.Decimal(p, "price")
		x.RegularPrice = rest.Decimal(p, "regular_price")
		x.SalePrice = rest.Decimal(p, "sale_price")
		x.StockQuantity = rest.IntPtr(p, "stock_quantity")
		for _, c := range rest.Objects(p, "categories") {
			x.CategoryIDs = append(x.CategoryIDs, rest.AsString(c["id"]))
		}
	case *migration.Customer:
		x.Email = rest.String(p, "email")
		x.FirstName = rest.String(p, "first_name")
		x.LastName = rest.String(p, "last_name")
		x.Phone = rest.String(p, "billing", "phone")
	case *migration.Order:
		x.Number = rest.String(p, "number")
		x.Status = rest.String(p, "status")
		x.Currency = rest.String(p, "currency")
		x.Total = rest.Decimal(p, "total")
		x.CustomerID = rest.String(p, "customer_id")
		x.Email = rest.String(p, "billing", "email")
		x.CreatedAt = rest.Time(p, "date_created")
		for _, li := range rest.Objects(p, "line_items") {
			item := migration.LineItem{
				ProductID: rest.AsString(li["product_id"]),
				SKU:       rest.AsString(li["sku"]),
				Name:      rest.AsString(li["name"]),
				Price:     rest.ParseDecimal(rest.AsString(li["price"])),
			}
			if q := rest.ParseDecimal(rest.AsString(li["quantity"])); !q.IsZero() {
				item.Quantity = int(q.IntPart())
			}
			x.LineItems = append(x.LineItems, item)
		}
	case *migration.Post:
		x.Title = rest.String(p, "title", "rendered")
		x.Slug = rest.String(p, "slug")
		x.Status = rest.String(p, "status")
		x.Content = rest.String(p, "content", "rendered")
	case *migration.Page:
		x.Title = rest.String(p, "title", "rendered")
		x.Slug = rest.String(p, "slug")
		x.Status = rest.String(p, "status")
		x.Content = rest.String(p, "content", "rendered")
	case *migration.Category:
		x.Name = rest.String(p, "name")
		x.Slug = rest.String(p, "slug")
		x.Description = rest.String(p, "description")
		if parent := rest.String(p, "parent"); parent != "0" {
			x.ParentID = parent
		}
	case *migration.ShippingZone:
		x.Name = rest.String(p, "name")
	case *migration.TaxRate:
		x.Name = rest.String(p, "name")
		x.Country = rest.String(p, "country")
		x.State = rest.String(p, "state")
		x.Rate = rest.Decimal(p, "rate")
		x.Class = rest.String(p, "class")
	case *migration.Coupon:
		x.Code = rest.String(p, "code")
		x.DiscountType = rest.String(p, "discount_type")
		x.Amount = rest.Decimal(p, "amount")
		x.UsageLimit = rest.IntPtr(p, "usage_limit")
		x.ExpiresAt = rest.Time(p, "date_expires")
	}
	return e, nil
}

// storeSettingsFromList folds the settings list ([{id, value}, ...]) into one
// record keyed by setting id.
func storeSettingsFromList(list []*migration.Payload) *migration.StoreSettings {
	data := migration.NewPayload()
	for _, item := range list {
		if id := rest.String(item, "id"); id != "" {
			v, _ := item.Get("value")
			data.Set(id, v)
		}
	}
	s := &migration.StoreSettings{Record: migration.Record{OriginalID: "general", OriginalData: data}}
	s.Address = rest.String(data, "woocommerce_store_address")
	s.City = rest.String(data, "woocommerce_store_city")
	s.Postcode = rest.String(data, "woocommerce_store_postcode")
	s.Country = rest.String(data, "woocommerce_default_country")
	s.Currency = rest.String(data, "woocommerce_currency")
	s.Email = rest.String(data, "woocommerce_email_from_address")
	return s
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
		d := map[string]any{
			"name":        x.Name,
			"sku":         x.SKU,
			"status":      x.Status,
			"description": x.Description,
		}
		if !x.RegularPrice.IsZero() {
			d["regular_price"] = x.RegularPrice.String()
		} else if !x.Price.IsZero() {
			d["regular_price"] = x.Price.String()
		}
		if !x.SalePrice.IsZero() {
			d["sale_price"] = x.SalePrice.String()
		}
		if x.StockQuantity != nil {
			d["manage_stock"] = true
			d["stock_quantity"] = *x.StockQuantity
		}
		return d
	case *migration.Customer:
		return map[string]any{
			"email":      x.Email,
			"first_name": x.FirstName,
			"last_name":  x.LastName,
		}
	case *migration.Order:
		items := make([]any, 0, len(x.LineItems))
		for _, li := range x.LineItems {
			items = append(items, map[string]any{
				"name":     li.Name,
				"sku":      li.SKU,
				"quantity": li.Quantity,
				"total":    li.Price.Mul(decimal.NewFromInt(int64(li.Quantity))).StringFixed(2),
			})
		}
		d := map[string]any{
			"status":     wooOrderStatus(x.Status),
			"currency":   x.Currency,
			"line_items": items,
		}
		if x.Email != "" {
			d["billing"] = map[string]any{"email": x.Email}
		}
		return d
	case *migration.Post:
		return map[string]any{"title": x.Title, "slug": x.Slug, "status": wpStatus(x.Status), "content": x.Content}
	case *migration.Page:
		return map[string]any{"title": x.Title, "slug": x.Slug, "status": wpStatus(x.Status), "content": x.Content}
	case *migration.Category:
		return map[string]any{"name": x.Name, "slug": x.Slug, "description": x.Description}
	case *migration.ShippingZone:
		return map[string]any{"name": x.Name}
	case *migration.TaxRate:
		d := map[string]any{"name": x.Name, "country": x.Country, "state": x.State, "class": x.Class}
		if !x.Rate.IsZero() {
			d["rate"] = x.Rate.String()
		}
		return d
	case *migration.Coupon:
		d := map[string]any{
			"code":          x.Code,
			"discount_type": wooDiscountType(x.DiscountType),
			"amount":        x.Amount.String(),
		}
		if x.UsageLimit != nil {
			d["usage_limit"] = *x.UsageLimit
		}
		if x.ExpiresAt != nil {
			d["date_expires"] = x.ExpiresAt.Format("2006-01-02T15:04:05")
		}
		return d
	default:
		return map[string]any{}
	}
}

func settingsBody(s *migration.StoreSettings) map[string]any {
	return rest.Body(&s.Record, map[string]any{
		"woocommerce_store_address":      s.Address,
		"woocommerce_store_city":         s.City,
		"woocommerce_store_postcode":     s.Postcode,
		"woocommerce_default_country":    s.Country,
		"woocommerce_currency":           s.Currency,
		"woocommerce_email_from_address": s.Email,
	})
}

func wooOrderStatus(s string) string {
	switch s {
	case "paid":
		return "processing"
	case "pending", "processing", "on-hold", "completed", "cancelled", "refunded", "failed":
		return s
	case "voided":
		return "cancelled"
	case "":
		return "pending"
	default:
		return "processing"
	}
}

func wpStatus(s string) string {
	switch s {
	case "publish", "draft", "pending", "private":
		return s
	case "published", "active":
		return "publish"
	default:
		return "draft"
	}
}

func wooDiscountType(s string) string {
	switch s {
	case "percent", "percentage":
		return "percent"
	case "fixed_product":
		return "fixed_product"
	default:
		return "fixed_cart"
	}
}
