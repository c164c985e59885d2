package assoc

import (
	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// Payload is one incoming child. An empty Key means the payload carries no
// external identifier and always creates a row.
type Payload interface {
	Key() string
	Deleted() bool
}

// Indexed is a payload with its position in the incoming slice.
type Indexed[P Payload] struct {
	Index   int
	Payload P
}

// Pair is an incoming payload matched to the persisted row it updates.
type Pair[P Payload, R any] struct {
	Index   int
	Payload P
	Row     *R
}

// Plan is the partition of incoming payloads against persisted rows.
// Rows of the owner that no payload mentions are in none of the sets and
// are left untouched.
type Plan[P Payload, R any] struct {
	Deletes []*R
	Updates []Pair[P, R]
	Creates []Indexed[P]
	// Ignored counts delete-flagged payloads that matched nothing.
	Ignored int
}

// Partition splits incoming into deletions, updates and creations by
// matching payload keys against keyOf of the existing rows. A key appearing
// twice in incoming is a validation error.
func Partition[P Payload, R any](existing []R, keyOf func(*R) string, incoming []P) (*Plan[P, R], error) {
	byKey := make(map[string]*R, len(existing))
	for i := range existing {
		byKey[keyOf(&existing[i])] = &existing[i]
	}

	plan := &Plan[P, R]{}
	seen := make(map[string]int, len(incoming))
	for i, p := range incoming {
		key := p.Key()
		if key != "" {
			if first, dup := seen[key]; dup {
				return nil, errors.New(errors.NewStd("payload identifier repeated")).
					Component("assoc").
					Category(errors.CategoryValidation).
					Context("uuid", key).
					Context("first_index", first).
					Context("second_index", i).
					Build()
			}
			seen[key] = i
		}

		row, found := byKey[key]
		found = found && key != ""
		switch {
		case p.Deleted() && found:
			plan.Deletes = append(plan.Deletes, row)
		case p.Deleted():
			plan.Ignored++
		case found:
			plan.Updates = append(plan.Updates, Pair[P, R]{Index: i, Payload: p, Row: row})
		default:
			plan.Creates = append(plan.Creates, Indexed[P]{Index: i, Payload: p})
		}
	}
	return plan, nil
}
