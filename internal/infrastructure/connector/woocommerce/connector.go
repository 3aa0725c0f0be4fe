// Package woocommerce connects to a WooCommerce store through its REST API
// (wp-json/wc/v3) and to the WordPress content API (wp-json/wp/v2) for posts
// and pages.
package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
	"go.uber.org/zap"
)

const (
	commercePrefix = "wp-json/wc/v3/"
	contentPrefix  = "wp-json/wp/v2/"

	defaultPerPage = 100
)

// ErrContentCredentials means posts or pages were requested without a
// WordPress user and application password.
var ErrContentCredentials = errors.New("woocommerce: wordpress application password not configured")

// Connector is both a migration.Source and a migration.Destination
type Connector struct {
	client  *rest.Client
	content rest.Authenticator
	logger  *zap.Logger
}

var (
	_ migration.Source      = (*Connector)(nil)
	_ migration.Destination = (*Connector)(nil)
)

// New creates a connector for the store at cfg.URL
func New(cfg migration.ConnectionConfig, opts ...rest.Option) (*Connector, error) {
	if err := cfg.Validate(migration.PlatformWooCommerce); err != nil {
		return nil, err
	}
	o := rest.NewOptions(opts...)
	client, err := rest.NewClient(migration.PlatformWooCommerce, cfg.URL,
		rest.BasicAuth(cfg.Auth.Key, cfg.Auth.Secret), o)
	if err != nil {
		return nil, err
	}
	c := &Connector{
		client: client,
		logger: o.Logger.Named("woocommerce"),
	}
	if cfg.Auth.HasContentCredentials() {
		c.content = rest.BasicAuth(cfg.Auth.User, strings.ReplaceAll(cfg.Auth.AppPassword, " ", ""))
	}
	return c, nil
}

// Kind implements migration.Source and migration.Destination
func (c *Connector) Kind() migration.PlatformKind {
	return migration.PlatformWooCommerce
}

// Connect probes the system status endpoint
func (c *Connector) Connect(ctx context.Context) error {
	var status map[string]json.RawMessage
	if _, err := c.client.Get(ctx, commercePrefix+"system_status", nil, &status); err != nil {
		return connectionError(err)
	}
	return nil
}

// Disconnect implements migration.Source; the REST API is stateless
func (c *Connector) Disconnect(context.Context) error {
	return nil
}

func connectionError(err error) error {
	ce := &migration.ConnectionError{Platform: migration.PlatformWooCommerce, Err: err}
	switch {
	case rest.IsStatus(err, 401), rest.IsStatus(err, 403):
		ce.Message = "invalid consumer key or secret"
	case rest.IsStatus(err, 404):
		ce.Message = "WooCommerce REST API not found at this URL"
	}
	return ce
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

type endpoint struct {
	path      string
	content   bool // WordPress content API with application password auth
	paginated bool
}

var endpoints = map[migration.EntityType]endpoint{
	migration.EntityProducts:      {path: commercePrefix + "products", paginated: true},
	migration.EntityCategories:    {path: commercePrefix + "products/categories", paginated: true},
	migration.EntityCustomers:     {path: commercePrefix + "customers", paginated: true},
	migration.EntityOrders:        {path: commercePrefix + "orders", paginated: true},
	migration.EntityCoupons:       {path: commercePrefix + "coupons", paginated: true},
	migration.EntityTaxRates:      {path: commercePrefix + "taxes", paginated: true},
	migration.EntityShippingZones: {path: commercePrefix + "shipping/zones"},
	migration.EntityStoreSettings: {path: commercePrefix + "settings/general"},
	migration.EntityPosts:         {path: contentPrefix + "posts", content: true, paginated: true},
	migration.EntityPages:         {path: contentPrefix + "pages", content: true, paginated: true},
}

func (c *Connector) endpointFor(t migration.EntityType) (endpoint, rest.Authenticator, error) {
	ep, ok := endpoints[t]
	if !ok {
		return endpoint{}, nil, fmt.Errorf("%w: %s", migration.ErrInvalidEntityType, t)
	}
	if ep.content {
		if c.content == nil {
			return endpoint{}, nil, fmt.Errorf("%w: %w", migration.ErrEntityNotSupported, ErrContentCredentials)
		}
		return ep, c.content, nil
	}
	return ep, nil, nil
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

// FetchPage reads one page. The declared total comes from X-WP-Total; lists
// the API does not paginate are returned whole as page 1.
func (c *Connector) FetchPage(ctx context.Context, t migration.EntityType, page, perPage int) (migration.SourcePage, error) {
	ep, auth, err := c.endpointFor(t)
	if err != nil {
		return migration.SourcePage{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if !ep.paginated && page > 1 {
		return migration.SourcePage{}, nil
	}

	req := rest.Request{Path: ep.path, Auth: auth}
	if ep.paginated {
		req.Query = url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
	}
	if t == migration.EntityOrders {
		if req.Query == nil {
			req.Query = url.Values{}
		}
		req.Query.Set("status", "any")
	}

	var raw []json.RawMessage
	resp, err := c.client.Do(ctx, req, &raw)
	if err != nil {
		return migration.SourcePage{}, fmt.Errorf("fetch %s page %d: %w", t, page, err)
	}
	payloads, err := rest.DecodeList(raw)
	if err != nil {
		return migration.SourcePage{}, fmt.Errorf("fetch %s page %d: %w", t, page, err)
	}

	if t == migration.EntityStoreSettings {
		return migration.SourcePage{Items: []migration.Entity{storeSettingsFromList(payloads)}, DeclaredTotal: 1}, nil
	}

	items := make([]migration.Entity, 0, len(payloads))
	for _, p := range payloads {
		e, err := toEntity(t, p)
		if err != nil {
			return migration.SourcePage{}, err
		}
		if zone, ok := e.(*migration.ShippingZone); ok {
			zone.Locations = c.zoneLocations(ctx, zone.OriginalID)
		}
		items = append(items, e)
	}

	total := len(items)
	if ep.paginated {
		total, _ = strconv.Atoi(resp.Header.Get("X-WP-Total"))
	}
	return migration.SourcePage{Items: items, DeclaredTotal: total}, nil
}

// Fetch reads every page of t, reporting progress against the declared total
func (c *Connector) Fetch(ctx context.Context, t migration.EntityType, onProgress migration.ProgressFunc) ([]migration.Entity, error) {
	var all []migration.Entity
	total := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := c.FetchPage(ctx, t, page, defaultPerPage)
		if err != nil {
			return nil, err
		}
		if page == 1 {
			total = p.DeclaredTotal
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || len(p.Items) < defaultPerPage {
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

// ExportFields lists readable fields of t
func (c *Connector) ExportFields(ctx context.Context, t migration.EntityType) []string {
	return c.fields(ctx, t, exportFields[t])
}

func (c *Connector) fields(ctx context.Context, t migration.EntityType, static []string) []string {
	if t == migration.EntityStoreSettings {
		return static
	}
	page, err := c.FetchPage(ctx, t, 1, 1)
	if err != nil {
		c.logger.Warn("Field sampling failed, using static list",
			zap.Error(&migration.SchemaFetchError{Platform: migration.PlatformWooCommerce, EntityType: t, Err: err}))
		return append([]string(nil), static...)
	}
	if len(page.Items) == 0 {
		return append([]string(nil), static...)
	}
	return rest.MergeFields(static, page.Items[0].Base().OriginalData)
}

func (c *Connector) zoneLocations(ctx context.Context, zoneID string) []string {
	var raw []struct {
		Code string `json:"code"`
		Type string `json:"type"`
	}
	if _, err := c.client.Get(ctx, commercePrefix+"shipping/zones/"+zoneID+"/locations", nil, &raw); err != nil {
		c.logger.Debug("Shipping zone locations unavailable", zap.String("zone_id", zoneID), zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		out = append(out, l.Code)
	}
	return out
}

// ---------------------------------------------------------------------------
// Destination
// ---------------------------------------------------------------------------

// ImportFields lists writable fields of t
func (c *Connector) ImportFields(ctx context.Context, t migration.EntityType) []string {
	return c.fields(ctx, t, importFields[t])
}

// Import creates every entity, one request each
func (c *Connector) Import(ctx context.Context, t migration.EntityType, entities []migration.Entity) ([]migration.ImportResult, error) {
	results := make([]migration.ImportResult, 0, len(entities))
	ep, auth, epErr := c.endpointFor(t)
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		id := e.Base().OriginalID
		if epErr != nil {
			results = append(results, migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: epErr}))
			continue
		}
		newID, err := c.create(ctx, ep, auth, e)
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

func (c *Connector) create(ctx context.Context, ep endpoint, auth rest.Authenticator, e migration.Entity) (string, error) {
	body, err := requestBody(e)
	if err != nil {
		return "", err
	}
	var created struct {
		ID json.Number `json:"id"`
	}
	if _, err := c.client.Do(ctx, rest.Request{Method: "POST", Path: ep.path, Body: body, Auth: auth}, &created); err != nil {
		return "", err
	}
	return created.ID.String(), nil
}

// ImportStoreSettings writes the general settings in one batch update
func (c *Connector) ImportStoreSettings(ctx context.Context, settings *migration.StoreSettings) (migration.ImportResult, error) {
	id := settings.OriginalID
	body := settingsBody(settings)
	if len(body) == 0 {
		return migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: errors.New("no settings to write")}), nil
	}

	updates := make([]map[string]any, 0, len(body))
	for _, key := range settingsKeys {
		if v, ok := body[key]; ok {
			updates = append(updates, map[string]any{"id": key, "value": v})
		}
	}
	if _, err := c.client.Post(ctx, commercePrefix+"settings/general/batch", map[string]any{"update": updates}, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return migration.ImportResult{}, ctxErr
		}
		return migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: err}), nil
	}
	return migration.Imported(id, "general"), nil
}
