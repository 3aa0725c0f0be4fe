// Package migration contains the Migration bounded context.
// This context moves store data (catalog, customers, orders, content, taxonomy,
// shipping, tax, coupons and store settings) from one e-commerce platform to another.
//
// Key concepts:
//   - Project: a source/destination platform pair with connection configs and per-entity mappings
//   - Source / Destination: ports implemented by platform connectors in the infrastructure layer
//   - Entity: normalized record (Product, Customer, Order, ...) carrying the raw source payload
//   - FieldMap: ordered destination field -> source field mapping, inferred by the Reconciler
//   - MigrationStatus: process-wide progress snapshot broadcast to observers
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package migration
