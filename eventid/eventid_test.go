package eventid

import "testing"

func TestRoundTrip(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 100; i++ {
		id := g.Next()
		s := id.String()
		if len(s) != 26 {
			t.Fatalf("unexpected string length %d for %v", len(s), id)
		}
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got != id {
			t.Fatalf("round trip mismatch: %v != %v", got, id)
		}
	}
}

func TestMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 10000; i++ {
		next := g.Next()
		if !prev.Less(next) {
			t.Fatalf("ids not strictly increasing: %v >= %v", prev, next)
		}
		prev = next
	}
}

func TestCompare(t *testing.T) {
	g := NewGenerator()
	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected a == a")
	}
}
