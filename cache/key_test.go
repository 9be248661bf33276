package cache

import (
	"strings"
	"testing"
)

func TestBuildOrderIndependent(t *testing.T) {
	a := Build("gnews", "news.search", String("q", "ai"), String("lang", "en-US"), Int("page", 2))
	b := Build("gnews", "news.search", Int("page", 2), String("lang", "en-US"), String("q", "ai"))
	if a != b {
		t.Fatalf("insertion order changed the key: %q vs %q", a, b)
	}
}

func TestBuildDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		k := Build("ns", "op", String("a", "1"), Bool("b", true), Float("c", 1.5))
		want := "ns:op?a=s:1&b=b:true&c=f:1.5"
		if k != want {
			t.Fatalf("Build = %q, want %q", k, want)
		}
	}
}

func TestBuildTypeTags(t *testing.T) {
	tests := []struct {
		name string
		a, b Param
	}{
		{"int vs string", Int("p", 5), String("p", "5")},
		{"bool vs string", Bool("p", true), String("p", "true")},
		{"float vs string", Float("p", 1.5), String("p", "1.5")},
		{"float vs int", Float("p", 5), Int("p", 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := Build("ns", "op", tt.a)
			kb := Build("ns", "op", tt.b)
			if ka == kb {
				t.Fatalf("differently typed values collide: %q", ka)
			}
		})
	}
}

func TestBuildDelimiterValuesDistinct(t *testing.T) {
	// A value carrying the delimiter sequence must not forge extra
	// parameters: these two sets would otherwise share one key.
	a := Build("ns", "op", String("lang", "x&q=s:y"), String("q", "z"))
	b := Build("ns", "op", String("lang", "x"), String("q", "y&q=s:z"))
	if a == b {
		t.Fatalf("distinct param sets collide on key %q", a)
	}

	c := Build("ns", "op", String("a", "1&b=s:2"))
	d := Build("ns", "op", String("a", "1"), String("b", "2"))
	if c == d {
		t.Fatalf("embedded delimiters forged a second parameter: %q", c)
	}
}

func TestBuildEscapedValuesStable(t *testing.T) {
	a := Build("ns", "op", String("q", "a&b=c"))
	b := Build("ns", "op", String("q", "a&b=c"))
	if a != b {
		t.Fatalf("escaped keys differ for equal input: %q vs %q", a, b)
	}
}

func TestBuildDifferentNamespaces(t *testing.T) {
	a := Build("gnews", "search", String("q", "ai"))
	b := Build("trends", "search", String("q", "ai"))
	if a == b {
		t.Fatalf("namespaces collide: %q", a)
	}
}

func TestBuildLongKeyHashed(t *testing.T) {
	long := strings.Repeat("x", 500)
	a := Build("ns", "op", String("q", long))
	b := Build("ns", "op", String("q", long))
	if a != b {
		t.Fatalf("hashed keys differ for equal input: %q vs %q", a, b)
	}
	if len(a) > maxKeyLen {
		t.Fatalf("hashed key still too long: %d chars", len(a))
	}
	c := Build("ns", "op", String("q", long+"y"))
	if a == c {
		t.Fatal("different long inputs produced the same hashed key")
	}
}
