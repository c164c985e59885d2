// Package entities defines the GORM entity models for hazard storage.
//
// # Core Entities
//
//   - Hazard: one disaster event, unique by natural key (occur_at, incident, classify, source)
//   - Earthquake, Flood, Storm, ...: classification sub-records, at most one per hazard
//
// # Child Entities
//
//   - Location: places affected by an owner (hazard, report, ...)
//   - Impact: measured effects at a location
//   - Attachment: stored files; a single owner at a time
//   - Activity: attribution record naming the actor that created a subject
//
// Child tables reference their owner by (owner_kind, owner_id) instead of
// foreign keys so one table serves every owner kind.
//
// Times of occurrence are stored as Unix seconds, which keeps cursor
// comparisons and natural-key lookups independent of the database's
// timezone handling.
package entities
