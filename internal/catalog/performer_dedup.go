package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigboard/gigboard/internal/match"
	"github.com/gigboard/gigboard/internal/models"
)

// PerformerDeduplicator resolves a performer name hint to an existing
// canonical performer or creates one. Same shape as the venue deduplicator
// minus the spatial dimension: purely normalized-name lookup-or-create.
type PerformerDeduplicator struct {
	performers PerformerRepository
	now        func() time.Time
}

func NewPerformerDeduplicator(performers PerformerRepository) *PerformerDeduplicator {
	return &PerformerDeduplicator{performers: performers, now: time.Now}
}

// Resolve returns the canonical performer for the name hint, creating one on
// first reference with insert-or-retrieve semantics.
func (d *PerformerDeduplicator) Resolve(ctx context.Context, name string) (*models.Performer, error) {
	if name == "" {
		return nil, fmt.Errorf("performer hint is empty")
	}
	normalized := match.NormalizeName(name)

	existing, err := d.performers.GetByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("performer lookup: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	performer := models.Performer{
		ID:             uuid.NewString(),
		Name:           name,
		NormalizedName: normalized,
		CreatedAt:      d.now(),
	}
	if err := d.performers.Insert(ctx, performer); err != nil {
		if errors.Is(err, ErrDuplicate) {
			winner, lookupErr := d.performers.GetByNormalizedName(ctx, normalized)
			if lookupErr != nil {
				return nil, fmt.Errorf("performer re-query after conflict: %w", lookupErr)
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("performer conflict but no row found for %q", normalized)
		}
		return nil, fmt.Errorf("performer insert: %w", err)
	}

	return &performer, nil
}

// ResolveAll resolves every hint, dropping empty ones.
func (d *PerformerDeduplicator) ResolveAll(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		performer, err := d.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		if !seen[performer.ID] {
			seen[performer.ID] = true
			ids = append(ids, performer.ID)
		}
	}
	return ids, nil
}
