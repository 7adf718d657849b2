package featureset

import (
	"slices"
	"testing"
)

func TestNewSortsAndDeduplicates(t *testing.T) {
	s := New("serde", "alloc", "serde", "", "std")
	want := []string{"alloc", "serde", "std"}
	if got := s.Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}

func TestZeroValueIsEmptySet(t *testing.T) {
	var s Set
	if s.Len() != 0 {
		t.Fatalf("zero value Len() = %d, want 0", s.Len())
	}
	if s.String() != "" {
		t.Fatalf("zero value String() = %q, want empty", s.String())
	}
	if !s.SubsetOf(New("a", "b")) {
		t.Fatal("empty set must be a subset of every set")
	}
}

func TestSubsetOf(t *testing.T) {
	cases := []struct {
		name  string
		sub   Set
		super Set
		want  bool
	}{
		{"proper subset", New("a"), New("a", "b"), true},
		{"equal sets", New("a", "b"), New("a", "b"), true},
		{"disjoint", New("c"), New("a", "b"), false},
		{"partial overlap", New("a", "c"), New("a", "b"), false},
		{"empty subset", New(), New("a"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub.SubsetOf(tc.super); got != tc.want {
				t.Fatalf("SubsetOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnion(t *testing.T) {
	got := New("b", "a").Union(New("c", "a"))
	if want := "a,b,c"; got.String() != want {
		t.Fatalf("Union = %q, want %q", got.String(), want)
	}
}

func TestUnionDoesNotMutateReceiver(t *testing.T) {
	s := New("a")
	_ = s.Union(New("b"))
	if got := s.String(); got != "a" {
		t.Fatalf("receiver mutated by Union: %q", got)
	}
}

func TestCompareOrdering(t *testing.T) {
	sets := []Set{New("b"), New("a", "b"), New(), New("a")}
	slices.SortFunc(sets, Set.Compare)
	var got []string
	for _, s := range sets {
		got = append(got, s.String())
	}
	// shorter / lexicographically smaller prefixes sort first
	want := []string{"", "a", "a,b", "b"}
	if !slices.Equal(got, want) {
		t.Fatalf("sorted order = %v, want %v", got, want)
	}
}

func TestFilter(t *testing.T) {
	s := New("a", "b", "c")
	got := s.Filter(func(n string) bool { return n != "b" })
	if got.String() != "a,c" {
		t.Fatalf("Filter = %q, want a,c", got.String())
	}
}

func TestListRendering(t *testing.T) {
	if got := New("b", "a").List(); got != "a, b" {
		t.Fatalf("List() = %q, want %q", got, "a, b")
	}
}
