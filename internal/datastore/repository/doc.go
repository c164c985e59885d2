// Package repository provides repository interfaces and GORM implementations
// for hazard storage.
//
// # Error Handling
//
// All repositories return sentinel errors (ErrHazardNotFound, etc.)
// instead of leaking GORM errors. This enables future storage backend
// changes without breaking callers.
//
// # Transactions
//
// A Store bundles one repository per entity over a single *gorm.DB.
// Store.Transaction hands the callback a Store bound to the transaction;
// calling Transaction again on that Store opens a savepoint.
//
// # Owned Rows
//
// Locations, impacts and attachments reference their owner through an
// (owner_kind, owner_id) pair. OwnedRepository is the shared contract for
// those tables.
package repository
