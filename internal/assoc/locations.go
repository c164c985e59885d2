package assoc

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// LocationResult is a persisted location with its impacts.
type LocationResult struct {
	Location *entities.Location
	Impacts  []*entities.Impact
}

// LocationsOutcome is the result of SyncLocations.
type LocationsOutcome struct {
	Locations []LocationResult // one per non-deleted payload, input order
	Location  Stats
	Impact    Stats
}

func locationKind(repo repository.LocationRepository) *childKind[hazard.LocationPayload, entities.Location] {
	return &childKind[hazard.LocationPayload, entities.Location]{
		name:   "location",
		repo:   repo,
		uuidOf: func(l *entities.Location) string { return l.UUID },
		idOf:   func(l *entities.Location) uint { return l.ID },
		build: func(owner hazard.OwnerRef, p hazard.LocationPayload) *entities.Location {
			l := locationFromFields(p.Fields)
			l.UUID = p.UUID
			l.OwnerKind = string(owner.Kind)
			l.OwnerID = owner.ID
			return l
		},
		diff: func(row *entities.Location, p hazard.LocationPayload) map[string]any {
			return changedColumns(locationColumns(row), locationColumns(locationFromFields(p.Fields)))
		},
		apply: func(row *entities.Location, p hazard.LocationPayload) {
			target := locationFromFields(p.Fields)
			target.ID, target.UUID = row.ID, row.UUID
			target.OwnerKind, target.OwnerID = row.OwnerKind, row.OwnerID
			target.CreatedAt, target.UpdatedAt = row.CreatedAt, row.UpdatedAt
			*row = *target
		},
	}
}

// SyncLocations reconciles the locations of owner with payloads and then the
// impacts of every kept location. Deleting a location deletes its impacts.
// Everything runs in one transaction; any failure leaves the owner's
// children as they were.
func (s *Synchronizer) SyncLocations(ctx context.Context, owner hazard.OwnerRef, payloads []hazard.LocationPayload) (*LocationsOutcome, error) {
	var out *LocationsOutcome
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		out, err = syncLocations(ctx, tx, owner, payloads)
		return err
	})
	if err != nil {
		return nil, err
	}

	getLogger().Debug("Synchronized locations",
		"owner", owner.String(),
		"created", out.Location.Created,
		"updated", out.Location.Updated,
		"unchanged", out.Location.Unchanged,
		"deleted", out.Location.Deleted,
		"impacts_created", out.Impact.Created,
		"impacts_deleted", out.Impact.Deleted)
	return out, nil
}

func syncLocations(ctx context.Context, tx *repository.Store, owner hazard.OwnerRef, payloads []hazard.LocationPayload) (*LocationsOutcome, error) {
	lk := locationKind(tx.Locations)
	res, deletedIDs, err := lk.sync(ctx, owner, payloads)
	if err != nil {
		return nil, err
	}
	if err := tx.Impacts.DeleteByOwners(ctx, hazard.OwnerLocation, deletedIDs); err != nil {
		return nil, lk.dbError(err, "cascade_impacts", owner)
	}

	out := &LocationsOutcome{Location: res.Stats}
	ik := impactKind(tx.Impacts)
	next := 0
	for _, p := range payloads {
		if p.Deleted() {
			continue
		}
		loc := res.Rows[next]
		next++

		result := LocationResult{Location: loc}
		if len(p.Impacts) > 0 {
			// The location row exists at this point, so impacts can reference its id
			impacts, _, err := ik.sync(ctx, hazard.LocationOwner(loc.ID), p.Impacts)
			if err != nil {
				return nil, err
			}
			result.Impacts = impacts.Rows
			out.Impact.Add(impacts.Stats)
		}
		out.Locations = append(out.Locations, result)
	}
	return out, nil
}

func locationFromFields(f hazard.LocationFields) *entities.Location {
	l := &entities.Location{
		Country:                   f.Country,
		CountryCode:               f.CountryCode,
		AdministrativeArea:        f.AdministrativeArea,
		AdministrativeAreaCode:    f.AdministrativeAreaCode,
		SubAdministrativeArea:     f.SubAdministrativeArea,
		SubAdministrativeAreaCode: f.SubAdministrativeAreaCode,
		Locality:                  f.Locality,
		LocalityCode:              f.LocalityCode,
		SubLocality:               f.SubLocality,
		SubLocalityCode:           f.SubLocalityCode,
		Thoroughfare:              f.Thoroughfare,
		SubThoroughfare:           f.SubThoroughfare,
		PostalCode:                f.PostalCode,
		AreasOfInterest:           f.AreasOfInterest,
		Severity:                  f.Severity,
		Latitude:                  f.Latitude,
		Longitude:                 f.Longitude,
	}
	l.NormalizeNames()
	return l
}

func locationColumns(l *entities.Location) map[string]any {
	return map[string]any{
		"country":                      l.Country,
		"country_code":                 l.CountryCode,
		"administrative_area":          l.AdministrativeArea,
		"administrative_area_code":     l.AdministrativeAreaCode,
		"sub_administrative_area":      l.SubAdministrativeArea,
		"sub_administrative_area_code": l.SubAdministrativeAreaCode,
		"locality":                     l.Locality,
		"locality_code":                l.LocalityCode,
		"sub_locality":                 l.SubLocality,
		"sub_locality_code":            l.SubLocalityCode,
		"thoroughfare":                 l.Thoroughfare,
		"sub_thoroughfare":             l.SubThoroughfare,
		"postal_code":                  l.PostalCode,
		"areas_of_interest":            l.AreasOfInterest,
		"severity":                     l.Severity,
		"latitude":                     floatValue(l.Latitude),
		"longitude":                    floatValue(l.Longitude),
	}
}

// floatValue maps a nullable column to a comparable value.
func floatValue(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// changedColumns returns the entries of want that differ from have.
func changedColumns(have, want map[string]any) map[string]any {
	changed := make(map[string]any)
	for col, v := range want {
		if have[col] != v {
			changed[col] = v
		}
	}
	return changed
}
