// Package shopify connects to a Shopify store through the Admin REST API.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
	"go.uber.org/zap"
)

const (
	// DefaultAPIVersion is the Admin API version used when none is configured
	DefaultAPIVersion = "2024-01"

	// maxPerPage is the largest page the Admin API returns
	maxPerPage = 250
)

// ErrReadOnly means Shopify offers no write endpoint for the entity type
var ErrReadOnly = errors.New("shopify: entity type is read-only")

// Connector is both a migration.Source and a migration.Destination
type Connector struct {
	client *rest.Client
	logger *zap.Logger

	mu      sync.Mutex
	cursors map[migration.EntityType]map[int]string // page number -> page_info
	blogID  string
}

var (
	_ migration.Source      = (*Connector)(nil)
	_ migration.Destination = (*Connector)(nil)
)

// New creates a connector for the shop at cfg.URL. An empty apiVersion
// selects DefaultAPIVersion.
func New(cfg migration.ConnectionConfig, apiVersion string, opts ...rest.Option) (*Connector, error) {
	if err := cfg.Validate(migration.PlatformShopify); err != nil {
		return nil, err
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	o := rest.NewOptions(opts...)
	client, err := rest.NewClient(migration.PlatformShopify, base+"/admin/api/"+apiVersion+"/",
		rest.HeaderAuth("X-Shopify-Access-Token", cfg.Auth.Token), o)
	if err != nil {
		return nil, err
	}
	return &Connector{
		client:  client,
		logger:  o.Logger.Named("shopify"),
		cursors: make(map[migration.EntityType]map[int]string),
	}, nil
}

// Kind implements migration.Source and migration.Destination
func (c *Connector) Kind() migration.PlatformKind {
	return migration.PlatformShopify
}

// Connect probes shop.json
func (c *Connector) Connect(ctx context.Context) error {
	var shop struct {
		Shop map[string]json.RawMessage `json:"shop"`
	}
	if _, err := c.client.Get(ctx, "shop.json", nil, &shop); err != nil {
		ce := &migration.ConnectionError{Platform: migration.PlatformShopify, Err: err}
		switch {
		case rest.IsStatus(err, 401), rest.IsStatus(err, 403):
			ce.Message = "invalid or revoked access token"
		case rest.IsStatus(err, 404):
			ce.Message = "shop not found at this URL"
		}
		return ce
	}
	return nil
}

// Disconnect drops cached cursors
func (c *Connector) Disconnect(context.Context) error {
	c.mu.Lock()
	c.cursors = make(map[migration.EntityType]map[int]string)
	c.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

type endpoint struct {
	path      string // collection path without .json
	root      string // response key of the list
	single    string // request/response key of one item
	paginated bool
	readOnly  bool
	query     url.Values
}

var endpoints = map[migration.EntityType]endpoint{
	migration.EntityProducts:      {path: "products", root: "products", single: "product", paginated: true},
	migration.EntityCategories:    {path: "custom_collections", root: "custom_collections", single: "custom_collection", paginated: true},
	migration.EntityCustomers:     {path: "customers", root: "customers", single: "customer", paginated: true},
	migration.EntityOrders:        {path: "orders", root: "orders", single: "order", paginated: true, query: url.Values{"status": {"any"}}},
	migration.EntityPages:         {path: "pages", root: "pages", single: "page", paginated: true},
	migration.EntityPosts:         {path: "articles", root: "articles", single: "article", paginated: true},
	migration.EntityCoupons:       {path: "price_rules", root: "price_rules", single: "price_rule", paginated: true},
	migration.EntityShippingZones: {path: "shipping_zones", root: "shipping_zones", readOnly: true},
	migration.EntityTaxRates:      {path: "countries", root: "countries", readOnly: true},
	migration.EntityStoreSettings: {path: "shop", single: "shop"},
}

// resolve returns the endpoint for t; articles live under the shop's first blog
func (c *Connector) resolve(ctx context.Context, t migration.EntityType, create bool) (endpoint, error) {
	ep, ok := endpoints[t]
	if !ok {
		return endpoint{}, fmt.Errorf("%w: %s", migration.ErrInvalidEntityType, t)
	}
	if t == migration.EntityPosts {
		blogID, err := c.blog(ctx, create)
		if err != nil {
			return endpoint{}, err
		}
		if blogID == "" {
			return endpoint{}, nil
		}
		ep.path = "blogs/" + blogID + "/articles"
	}
	return ep, nil
}

func (c *Connector) blog(ctx context.Context, create bool) (string, error) {
	c.mu.Lock()
	id := c.blogID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var list struct {
		Blogs []struct {
			ID json.Number `json:"id"`
		} `json:"blogs"`
	}
	if _, err := c.client.Get(ctx, "blogs.json", url.Values{"limit": {"1"}}, &list); err != nil {
		return "", fmt.Errorf("list blogs: %w", err)
	}
	if len(list.Blogs) > 0 {
		id = list.Blogs[0].ID.String()
	} else if create {
		var created struct {
			Blog struct {
				ID json.Number `json:"id"`
			} `json:"blog"`
		}
		if _, err := c.client.Post(ctx, "blogs.json", map[string]any{"blog": map[string]any{"title": "News"}}, &created); err != nil {
			return "", fmt.Errorf("create blog: %w", err)
		}
		id = created.Blog.ID.String()
	}

	c.mu.Lock()
	c.blogID = id
	c.mu.Unlock()
	return id, nil
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

// FetchPage reads one page. Shopify pages by cursor, so page n>1 is only
// reachable after page n-1 has been read; an unknown page is empty.
func (c *Connector) FetchPage(ctx context.Context, t migration.EntityType, page, perPage int) (migration.SourcePage, error) {
	ep, err := c.resolve(ctx, t, false)
	if err != nil {
		return migration.SourcePage{}, fmt.Errorf("fetch %s: %w", t, err)
	}
	if ep.path == "" {
		return migration.SourcePage{}, nil
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = maxPerPage
	}

	if t == migration.EntityStoreSettings {
		if page > 1 {
			return migration.SourcePage{}, nil
		}
		settings, err := c.fetchShop(ctx)
		if err != nil {
			return migration.SourcePage{}, err
		}
		return migration.SourcePage{Items: []migration.Entity{settings}, DeclaredTotal: 1}, nil
	}
	if !ep.paginated && page > 1 {
		return migration.SourcePage{}, nil
	}

	query := url.Values{}
	if ep.paginated {
		query.Set("limit", strconv.Itoa(perPage))
		if page == 1 {
			c.resetCursors(t)
			for k, vs := range ep.query {
				query[k] = vs
			}
		} else {
			cursor, ok := c.cursor(t, page)
			if !ok {
				return migration.SourcePage{}, nil
			}
			// page_info requests accept no filters besides limit
			query.Set("page_info", cursor)
		}
	}

	var body map[string]json.RawMessage
	resp, err := c.client.Get(ctx, ep.path+".json", query, &body)
	if err != nil {
		return migration.SourcePage{}, fmt.Errorf("fetch %s page %d: %w", t, page, err)
	}
	var raw []json.RawMessage
	if list, ok := body[ep.root]; ok {
		if err := json.Unmarshal(list, &raw); err != nil {
			return migration.SourcePage{}, fmt.Errorf("fetch %s page %d: %w", t, page, err)
		}
	}
	payloads, err := rest.DecodeList(raw)
	if err != nil {
		return migration.SourcePage{}, fmt.Errorf("fetch %s page %d: %w", t, page, err)
	}

	if ep.paginated {
		if next := nextPageInfo(resp.Header.Get("Link")); next != "" {
			c.setCursor(t, page+1, next)
		}
	}

	items := make([]migration.Entity, 0, len(payloads))
	for _, p := range payloads {
		e, err := toEntity(t, p)
		if err != nil {
			return migration.SourcePage{}, err
		}
		if coupon, ok := e.(*migration.Coupon); ok {
			if code := c.discountCode(ctx, coupon.OriginalID); code != "" {
				coupon.Code = code
			}
		}
		items = append(items, e)
	}

	total := len(items)
	if ep.paginated {
		total = 0
		if page == 1 {
			total = c.count(ctx, ep)
		}
	}
	return migration.SourcePage{Items: items, DeclaredTotal: total}, nil
}

// Fetch reads every page of t, reporting progress against count.json
func (c *Connector) Fetch(ctx context.Context, t migration.EntityType, onProgress migration.ProgressFunc) ([]migration.Entity, error) {
	var all []migration.Entity
	total := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := c.FetchPage(ctx, t, page, maxPerPage)
		if err != nil {
			return nil, err
		}
		if page == 1 {
			total = p.DeclaredTotal
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || !c.hasCursor(t, page+1) {
			break
		}
		if pct := migration.ProgressPercent(len(all), total); pct >= 0 && onProgress != nil {
			onProgress(pct)
		}
	}
	if onProgress != nil {
		onProgress(100)
	}
	return all, nil
}

func (c *Connector) count(ctx context.Context, ep endpoint) int {
	var body struct {
		Count int `json:"count"`
	}
	if _, err := c.client.Get(ctx, ep.path+"/count.json", ep.query, &body); err != nil {
		c.logger.Debug("Count unavailable", zap.String("path", ep.path), zap.Error(err))
		return 0
	}
	return body.Count
}

func (c *Connector) fetchShop(ctx context.Context) (*migration.StoreSettings, error) {
	var body struct {
		Shop json.RawMessage `json:"shop"`
	}
	if _, err := c.client.Get(ctx, "shop.json", nil, &body); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", migration.EntityStoreSettings, err)
	}
	p, err := migration.PayloadFromJSON(body.Shop)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", migration.EntityStoreSettings, err)
	}
	return storeSettingsFromShop(p), nil
}

func (c *Connector) discountCode(ctx context.Context, ruleID string) string {
	var body struct {
		DiscountCodes []struct {
			Code string `json:"code"`
		} `json:"discount_codes"`
	}
	if _, err := c.client.Get(ctx, "price_rules/"+ruleID+"/discount_codes.json", nil, &body); err != nil {
		c.logger.Debug("Discount codes unavailable", zap.String("price_rule_id", ruleID), zap.Error(err))
		return ""
	}
	if len(body.DiscountCodes) == 0 {
		return ""
	}
	return body.DiscountCodes[0].Code
}

// ExportFields lists readable fields of t
func (c *Connector) ExportFields(ctx context.Context, t migration.EntityType) []string {
	return c.fields(ctx, t, exportFields[t])
}

func (c *Connector) fields(ctx context.Context, t migration.EntityType, static []string) []string {
	page, err := c.FetchPage(ctx, t, 1, 1)
	if err != nil {
		c.logger.Warn("Field sampling failed, using static list",
			zap.Error(&migration.SchemaFetchError{Platform: migration.PlatformShopify, EntityType: t, Err: err}))
		return append([]string(nil), static...)
	}
	if len(page.Items) == 0 {
		return append([]string(nil), static...)
	}
	return rest.MergeFields(static, page.Items[0].Base().OriginalData)
}

// ---------------------------------------------------------------------------
// Destination
// ---------------------------------------------------------------------------

// ImportFields lists writable fields of t
func (c *Connector) ImportFields(_ context.Context, t migration.EntityType) []string {
	return append([]string(nil), importFields[t]...)
}

// Import creates every entity, one request each
func (c *Connector) Import(ctx context.Context, t migration.EntityType, entities []migration.Entity) ([]migration.ImportResult, error) {
	results := make([]migration.ImportResult, 0, len(entities))
	if len(entities) == 0 {
		return results, nil
	}

	ep, epErr := c.resolve(ctx, t, true)
	if epErr == nil && (ep.readOnly || ep.single == "shop") {
		epErr = fmt.Errorf("%w: %s", ErrReadOnly, t)
	}
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		id := e.Base().OriginalID
		if epErr != nil {
			results = append(results, migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: epErr}))
			continue
		}
		newID, err := c.create(ctx, ep, e)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			results = append(results, migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: err}))
			continue
		}
		e.Base().NewID = newID
		results = append(results, migration.Imported(id, newID))
	}
	return results, nil
}

func (c *Connector) create(ctx context.Context, ep endpoint, e migration.Entity) (string, error) {
	body, err := requestBody(e)
	if err != nil {
		return "", err
	}
	var created map[string]struct {
		ID json.Number `json:"id"`
	}
	if _, err := c.client.Post(ctx, ep.path+".json", map[string]any{ep.single: body}, &created); err != nil {
		return "", err
	}
	newID := created[ep.single].ID.String()

	if _, ok := e.(*migration.Coupon); ok {
		payload := map[string]any{"discount_code": map[string]any{"code": rest.AsString(body["title"])}}
		if _, err := c.client.Post(ctx, "price_rules/"+newID+"/discount_codes.json", payload, nil); err != nil {
			return "", fmt.Errorf("price rule %s created but discount code failed: %w", newID, err)
		}
	}
	return newID, nil
}

// ImportStoreSettings always fails: shop settings are not writable through
// the Admin REST API.
func (c *Connector) ImportStoreSettings(_ context.Context, settings *migration.StoreSettings) (migration.ImportResult, error) {
	id := settings.OriginalID
	return migration.ImportFailed(id, &migration.ItemImportError{
		OriginalID: id,
		Err:        fmt.Errorf("%w: %s", ErrReadOnly, migration.EntityStoreSettings),
	}), nil
}
