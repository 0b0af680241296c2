package messaging

import (
	"slices"
	"testing"
)

func TestAppendBoundedAppends(t *testing.T) {
	t.Parallel()

	got := AppendBounded([]string{"a", "b"}, "c", 10)
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestAppendBoundedIdempotent(t *testing.T) {
	t.Parallel()

	in := []string{"a", "b", "c"}
	got := AppendBounded(in, "b", 10)
	if !slices.Equal(got, in) {
		t.Fatalf("duplicate id must leave the list unchanged: got=%v", got)
	}
}

func TestAppendBoundedEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	in := []string{"m1", "m2", "m3"}
	got := AppendBounded(in, "m4", 3)
	want := []string{"m2", "m3", "m4"}
	if !slices.Equal(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestAppendBoundedEvictsSingleWhenOverCapacity(t *testing.T) {
	t.Parallel()

	// A list already longer than capacity sheds exactly one element per
	// append; it converges toward capacity rather than truncating at once.
	in := []string{"a", "b", "c", "d", "e"}
	got := AppendBounded(in, "f", 3)
	want := []string{"b", "c", "d", "e", "f"}
	if !slices.Equal(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestAppendBoundedClampsCapacity(t *testing.T) {
	t.Parallel()

	got := AppendBounded([]string{"a"}, "b", 0)
	want := []string{"b"}
	if !slices.Equal(got, want) {
		t.Fatalf("capacity<1 must behave as capacity 1: got=%v want=%v", got, want)
	}
}

func TestAppendBoundedDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []string{"a", "b", "c"}
	_ = AppendBounded(in, "d", 3)
	if !slices.Equal(in, []string{"a", "b", "c"}) {
		t.Fatalf("input list was mutated: %v", in)
	}
}

func TestAppendBoundedPreservesOrderUnderChurn(t *testing.T) {
	t.Parallel()

	list := []string{}
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		list = AppendBounded(list, id, 3)
	}

	want := []string{"m3", "m4", "m5"}
	if !slices.Equal(list, want) {
		t.Fatalf("got=%v want=%v", list, want)
	}
}
