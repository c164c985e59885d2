package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories sharing one connection or transaction.
type Store struct {
	db *gorm.DB

	Hazards     HazardRepository
	Details     DetailRepository
	Locations   LocationRepository
	Impacts     ImpactRepository
	Attachments AttachmentRepository
	Activities  ActivityRepository
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Hazards:     NewHazardRepository(db),
		Details:     NewDetailRepository(db),
		Locations:   NewLocationRepository(db),
		Impacts:     NewImpactRepository(db),
		Attachments: NewAttachmentRepository(db),
		Activities:  NewActivityRepository(db),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a new transaction, or to a
// savepoint when s is already transactional. An error from fn rolls back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
