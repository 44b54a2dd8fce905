// Package links picks the single best reference link for a creature/variant
// using a specificity-ranked fallback chain.
package links

import (
	"context"
	"log/slog"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// CandidateSource queries link candidates at one specificity level.
type CandidateSource interface {
	FindLinkCandidates(ctx context.Context, crit storage.LinkCriteria) ([]*storage.LinkCandidate, error)
}

// Query identifies the creature/variant to resolve a link for. The caller
// fills it explicitly; nothing is inferred from runtime types. TemplateID
// may be empty when only the creature identity is known.
type Query struct {
	TemplateID       string
	CreatureID       int64
	IsMega           bool
	IsSpecialVariant bool
}

// Resolver finds reference links over a candidate source. It holds no state
// of its own; Resolve is a pure function over the candidate set.
type Resolver struct {
	source CandidateSource
}

// NewResolver creates a resolver backed by the given candidate source.
func NewResolver(source CandidateSource) *Resolver {
	return &Resolver{source: source}
}

// levels returns the fallback chain for a query, most specific first:
// exact template + variant flags, creature + variant flags, base template,
// base creature. Template levels are skipped when no template ID is known.
func levels(q Query) []storage.LinkCriteria {
	chain := make([]storage.LinkCriteria, 0, 4)
	if q.TemplateID != "" {
		chain = append(chain, storage.LinkCriteria{
			ByTemplate:       true,
			TemplateID:       q.TemplateID,
			IsMega:           q.IsMega,
			IsSpecialVariant: q.IsSpecialVariant,
		})
	}
	chain = append(chain, storage.LinkCriteria{
		CreatureID:       q.CreatureID,
		IsMega:           q.IsMega,
		IsSpecialVariant: q.IsSpecialVariant,
	})
	if q.TemplateID != "" {
		chain = append(chain, storage.LinkCriteria{
			ByTemplate: true,
			TemplateID: q.TemplateID,
		})
	}
	chain = append(chain, storage.LinkCriteria{
		CreatureID: q.CreatureID,
	})
	return chain
}

// Resolve walks the fallback chain and returns the first level that yields
// exactly one candidate. A level with zero candidates falls through; a level
// with more than one is ambiguous and also falls through, never broken
// arbitrarily. Exhausting the chain returns (nil, nil): no link is not an
// error.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*storage.LinkCandidate, error) {
	for _, crit := range levels(q) {
		candidates, err := r.source.FindLinkCandidates(ctx, crit)
		if err != nil {
			return nil, err
		}

		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0], nil
		default:
			slog.Debug("Ambiguous link candidates, skipping level",
				"creatureID", q.CreatureID, "templateID", q.TemplateID, "count", len(candidates))
		}
	}
	return nil, nil
}
