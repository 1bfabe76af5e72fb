package idset

import (
	"context"
	"sort"

	"github.com/evalkit/idjoin/errors"
)

// StartUsingContext materializes every non-empty named id set held by an
// evaluation context and returns the keys that were actually materialized,
// skipping no-ops. Sets are processed in name order so failures are
// deterministic. On error the keys already materialized are returned with
// it, so the caller can release them.
func (c *Cache) StartUsingContext(ctx context.Context, cs ContextSets) ([]string, error) {
	sets := cs.BaseIDSets()

	var keys []string
	for _, name := range sortedSetNames(sets) {
		members := sets[name]
		if len(members) == 0 {
			continue
		}
		key, err := c.StartUsing(ctx, New(cs.EvaluationID(), members))
		if err != nil {
			return keys, errors.Wrapf(err, "start using id set %q", name)
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// StopUsingContext derives each named id set's key independently, without
// consulting the registry, and releases one reference per set. Sets that
// were never started resolve to unregistered keys, which StopUsing treats
// as no-ops. Cleanup continues past individual failures; the first error is
// returned.
func (c *Cache) StopUsingContext(ctx context.Context, cs ContextSets) error {
	sets := cs.BaseIDSets()

	var firstErr error
	for _, name := range sortedSetNames(sets) {
		members := sets[name]
		if len(members) == 0 {
			continue
		}
		key := New(cs.EvaluationID(), members).Key()
		if err := c.StopUsing(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "stop using id set %q", name)
		}
	}
	return firstErr
}

func sortedSetNames(sets map[string][]int64) []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
