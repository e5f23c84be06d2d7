// Package cache provides the TTL cache for resolved registry data. Entries
// are grouped into categories with different lifetimes: identity data moves
// slowly, contact data goes stale quickly.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// Category partitions cached data by volatility.
type Category string

const (
	// CategoryIdentity covers legal name, status, person kind.
	CategoryIdentity Category = "identity"
	// CategoryRepresentatives covers the legal-representative roster.
	CategoryRepresentatives Category = "representatives"
	// CategoryContact covers address, phone, email.
	CategoryContact Category = "contact"
	// CategoryCrossref covers cross-registry correlation results.
	CategoryCrossref Category = "crossref"
)

// DefaultTTLs returns the operational lifetime per category.
func DefaultTTLs() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryIdentity:        time.Hour,
		CategoryRepresentatives: 2 * time.Hour,
		CategoryContact:         30 * time.Minute,
		CategoryCrossref:        24 * time.Hour,
	}
}

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
}

// Store is the TTL cache contract. Values are opaque encoded payloads; Get
// returns ok=false for both absent and expired entries.
type Store interface {
	Get(ctx context.Context, ruc model.RUC, cat Category) ([]byte, bool, error)
	Set(ctx context.Context, ruc model.RUC, cat Category, value []byte) error
	// Invalidate drops every category for the given RUC.
	Invalidate(ctx context.Context, ruc model.RUC) error
	// CleanupExpired removes expired entries and returns how many were dropped.
	CleanupExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// GetRecord fetches and decodes a consolidated record. The volatile
// categories gate the hit: a record whose contact block (30m) or
// representative roster (2h) has expired is reported as a miss even while
// the identity entry is still live, so the caller re-resolves instead of
// serving stale fields.
func GetRecord(ctx context.Context, s Store, ruc model.RUC) (*model.ConsolidatedRecord, bool, error) {
	raw, ok, err := s.Get(ctx, ruc, CategoryIdentity)
	if err != nil || !ok {
		return nil, false, err
	}
	var rec model.ConsolidatedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode record")
	}

	if _, ok, err := s.Get(ctx, ruc, CategoryContact); err != nil || !ok {
		return nil, false, err
	}
	if len(rec.Representatives) > 0 {
		if _, ok, err := s.Get(ctx, ruc, CategoryRepresentatives); err != nil || !ok {
			return nil, false, err
		}
	}
	return &rec, true, nil
}

// SetRecord stores a consolidated record under the identity category and
// mirrors its volatile parts into their own categories. When more than one
// registry corroborated the record, the source list is kept under the
// crossref category, which outlives the record itself.
func SetRecord(ctx context.Context, s Store, rec *model.ConsolidatedRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "cache: encode record")
	}
	if err := s.Set(ctx, rec.RUC, CategoryIdentity, raw); err != nil {
		return err
	}
	if len(rec.Representatives) > 0 {
		reps, err := json.Marshal(rec.Representatives)
		if err != nil {
			return eris.Wrap(err, "cache: encode representatives")
		}
		if err := s.Set(ctx, rec.RUC, CategoryRepresentatives, reps); err != nil {
			return err
		}
	}
	contact, err := json.Marshal(rec.Contact)
	if err != nil {
		return eris.Wrap(err, "cache: encode contact")
	}
	if err := s.Set(ctx, rec.RUC, CategoryContact, contact); err != nil {
		return err
	}
	if len(rec.Sources) > 1 {
		corr, err := json.Marshal(rec.Sources)
		if err != nil {
			return eris.Wrap(err, "cache: encode crossref")
		}
		if err := s.Set(ctx, rec.RUC, CategoryCrossref, corr); err != nil {
			return err
		}
	}
	return nil
}

// GetCrossref returns which registries corroborated a RUC on its last
// multi-source resolution. It stays answerable for a day after the record
// itself has gone stale.
func GetCrossref(ctx context.Context, s Store, ruc model.RUC) ([]string, bool, error) {
	raw, ok, err := s.Get(ctx, ruc, CategoryCrossref)
	if err != nil || !ok {
		return nil, false, err
	}
	var sources []string
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode crossref")
	}
	return sources, true, nil
}
