package shopify

import (
	"net/url"
	"strings"

	"github.com/storeshift/backend/internal/domain/migration"
)

// nextPageInfo extracts the page_info cursor of the rel="next" entry of a
// Link header, "" when there is none.
//
//	<https://shop/admin/api/2024-01/products.json?limit=50&page_info=abc>; rel="next"
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		target = strings.Trim(strings.TrimSpace(target), "<>")
		u, err := url.Parse(target)
		if err != nil {
			return ""
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func (c *Connector) cursor(t migration.EntityType, page int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cursor, ok := c.cursors[t][page]
	return cursor, ok
}

func (c *Connector) hasCursor(t migration.EntityType, page int) bool {
	_, ok := c.cursor(t, page)
	return ok
}

func (c *Connector) setCursor(t migration.EntityType, page int, cursor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursors[t] == nil {
		c.cursors[t] = make(map[int]string)
	}
	c.cursors[t][page] = cursor
}

func (c *Connector) resetCursors(t migration.EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, t)
}
