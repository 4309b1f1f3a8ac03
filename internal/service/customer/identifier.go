// internal/service/customer/identifier.go
package customer

import (
	"fmt"
	"strconv"
	"strings"
)

// NextIdentifier proposes the next sequential identifier for a queue:
// "<queue>_1" for an empty queue, otherwise "<queue>_<max+1>". The numeric
// tail is the substring after the first underscore; identifiers that do not
// parse count as 0 rather than failing. The result is purely computed from
// its inputs; uniqueness under concurrency is enforced by the store's
// constraint and the orchestrator's retry, not here.
func NextIdentifier(queue string, existing []string) string {
	return fmt.Sprintf("%s_%d", queue, maxSequence(existing)+1)
}

// ReserveBlock proposes n consecutive identifiers starting after the current
// maximum. Used by batch confirmation, which inserts the whole block under
// one transaction without re-checking mid-batch.
func ReserveBlock(queue string, existing []string, n int) []string {
	base := maxSequence(existing)
	block := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		block = append(block, fmt.Sprintf("%s_%d", queue, base+i))
	}
	return block
}

// VariantUID formats the k-th suffixed identifier of a duplicate lineage.
// Suffixes come from the store's per-base reservation, which is a high-water
// mark: deleting the record holding a suffix never frees it for reuse.
func VariantUID(base string, k int) string {
	return fmt.Sprintf("%s__%d", base, k)
}

// BaseOf returns the un-suffixed identifier of a duplicate lineage: the part
// before "__", or the identifier itself if it carries no variant suffix.
func BaseOf(uid string) string {
	if i := strings.Index(uid, "__"); i > 0 {
		return uid[:i]
	}
	return uid
}

func maxSequence(existing []string) int {
	max := 0
	for _, uid := range existing {
		if n := sequenceOf(uid); n > max {
			max = n
		}
	}
	return max
}

// sequenceOf parses the numeric tail after the first underscore. Variant
// identifiers ("base__k") and malformed values yield 0.
func sequenceOf(uid string) int {
	i := strings.Index(uid, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(uid[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
