package messaging

import "slices"

// AppendBounded returns the recency list after recording id.
//
// Semantics:
//   - If id is already present, the input list is returned unchanged (idempotent).
//   - If the list is at or above capacity, exactly ONE entry is evicted from the
//     front (oldest first) before id is appended at the end. A list that is over
//     capacity by more than one is NOT shrunk down in a single call; eviction is
//     one-per-append.
//
// The input slice is never mutated; callers persist the result themselves.
// Capacity below 1 is treated as 1.
func AppendBounded(list []string, id string, capacity int) []string {
	if capacity < 1 {
		capacity = 1
	}
	if slices.Contains(list, id) {
		return list
	}

	out := make([]string, 0, len(list)+1)
	if len(list) >= capacity {
		out = append(out, list[1:]...)
	} else {
		out = append(out, list...)
	}
	return append(out, id)
}
