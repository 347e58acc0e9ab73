// Package dedup filters fetched items down to the ones a topic has not seen.
package dedup

import "github.com/matheuskafuri/intelfeed/internal/cache"

// Filter returns the items of batch whose content hash is neither in the
// existing entry nor repeated earlier in the batch. Order is preserved.
func Filter(batch []cache.RawItem, existing cache.Entry) []cache.RawItem {
	seen := existing.Hashes()
	out := make([]cache.RawItem, 0, len(batch))
	for _, it := range batch {
		h := it.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, it)
	}
	return out
}
