package records

import (
	"context"
	"fmt"

	"scanmatch/internal/matcher"
)

// TemplateMatcher scores a pair of templates; non-zero means they match.
type TemplateMatcher interface {
	MatchTemplates(ctx context.Context, a, b *matcher.Template) (int, error)
}

// Match compares probe against every enrolled template and returns the entry
// with the highest non-zero score. It returns nil when nobody matches. Ties go
// to the entry that sorts first by name.
func (s *Store) Match(ctx context.Context, probe *matcher.Template, m TemplateMatcher) (*Entry, error) {
	if probe == nil {
		return nil, fmt.Errorf("%w: nil probe template", matcher.ErrInvalidArgument)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: nil matcher", matcher.ErrInvalidArgument)
	}
	ctx = ensureContext(ctx)
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var best *Entry
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := m.MatchTemplates(ctx, probe, entry.Template)
		if err != nil {
			return nil, fmt.Errorf("match against %q: %w", entry.Name, err)
		}
		if score > 0 && (best == nil || score > best.Score) {
			entry.Score = score
			best = entry
		}
	}
	return best, nil
}
