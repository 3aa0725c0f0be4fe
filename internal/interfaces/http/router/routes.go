package router

import (
	"github.com/storeshift/backend/internal/interfaces/http/handler"
)

// Handlers are the endpoint groups of the StoreShift API
type Handlers struct {
	System    *handler.SystemHandler
	Projects  *handler.ProjectHandler
	Sync      *handler.SyncHandler
	Migration *handler.MigrationHandler
}

// Routes builds the route groups for h
func Routes(h Handlers) []RouteRegistrar {
	system := NewDomainGroup("system", "")
	system.GET("/health", h.System.Health)

	projects := NewDomainGroup("projects", "/projects")
	projects.POST("", h.Projects.Create)
	projects.GET("", h.Projects.List)
	projects.GET("/:id", h.Projects.Get)
	projects.PUT("/:id", h.Projects.Update)
	projects.DELETE("/:id", h.Projects.Delete)

	projects.PUT("/:id/connections/:role", h.Projects.SetConnection)
	projects.POST("/:id/connections/:role/test", h.Projects.TestConnection)

	projects.GET("/:id/mappings", h.Projects.Mappings)
	projects.PUT("/:id/mappings/:entityType", h.Projects.UpdateMapping)
	projects.POST("/:id/mappings/:entityType/reconcile", h.Projects.Reconcile)
	projects.GET("/:id/fields/:entityType", h.Projects.Fields)

	projects.POST("/:id/sync/:entityType", h.Sync.Sync)
	projects.GET("/:id/synced/:entityType", h.Sync.List)
	projects.GET("/:id/synced/:entityType/export", h.Sync.Export)

	projects.POST("/:id/migrate", h.Migration.Start)
	projects.GET("/:id/runs", h.Migration.Runs)

	migration := NewDomainGroup("migration", "/migration")
	migration.GET("/status", h.Migration.Status)
	migration.GET("/events", h.Migration.Events)

	return []RouteRegistrar{system, projects, migration}
}
