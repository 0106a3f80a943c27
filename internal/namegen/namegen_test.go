package namegen

import (
	"strings"
	"testing"
)

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func TestAnimalStyleShapes(t *testing.T) {
	cases := []struct {
		style Style
		check func(t *testing.T, name string)
	}{
		{StyleNone, func(t *testing.T, name string) {
			parts := strings.Split(name, "-")
			if len(parts) != 2 {
				t.Fatalf("StyleNone name %q should be adjective-animal", name)
			}
			if !contains(adjectives, parts[0]) || !contains(animals, parts[1]) {
				t.Fatalf("StyleNone name %q is not adjective-animal", name)
			}
		}},
		{StyleUbuntu, func(t *testing.T, name string) {
			parts := strings.Split(name, "-")
			if len(parts) != 3 {
				t.Fatalf("StyleUbuntu name %q should be adjective-animal-suffix3", name)
			}
			if !contains(adjectives, parts[0]) || !contains(animals, parts[1]) {
				t.Fatalf("StyleUbuntu name %q is not adjective-animal-suffix", name)
			}
			if len(parts[2]) != 3 {
				t.Fatalf("StyleUbuntu suffix %q should be 3 chars", parts[2])
			}
		}},
		{StyleDocker, func(t *testing.T, name string) {
			parts := strings.Split(name, "-")
			if len(parts) != 3 {
				t.Fatalf("StyleDocker name %q should be adverb-animal-suffix4", name)
			}
			if !contains(adverbs, parts[0]) || !contains(animals, parts[1]) {
				t.Fatalf("StyleDocker name %q is not adverb-animal-suffix", name)
			}
			if len(parts[2]) != 4 {
				t.Fatalf("StyleDocker suffix %q should be 4 chars", parts[2])
			}
		}},
		{StyleFull, func(t *testing.T, name string) {
			parts := strings.Split(name, "-")
			if len(parts) != 5 {
				t.Fatalf("StyleFull name %q should be prefix3-adverb-adjective-animal-suffix4, got %d parts", name, len(parts))
			}
			if len(parts[0]) != 3 {
				t.Fatalf("StyleFull prefix %q should be 3 chars", parts[0])
			}
			if !contains(adverbs, parts[1]) {
				t.Fatalf("StyleFull name %q part 1 is not a known adverb", name)
			}
			if !contains(adjectives, parts[2]) {
				t.Fatalf("StyleFull name %q part 2 is not a known adjective", name)
			}
			if !contains(animals, parts[3]) {
				t.Fatalf("StyleFull name %q part 3 is not a known animal", name)
			}
			if len(parts[4]) != 4 {
				t.Fatalf("StyleFull suffix %q should be 4 chars", parts[4])
			}
		}},
	}

	for _, tc := range cases {
		name := Animal("", tc.style)
		if name == "" {
			t.Fatalf("Animal(%q) returned empty string", tc.style)
		}
		tc.check(t, name)
	}
}

func TestPrefixIsPrepended(t *testing.T) {
	name := Cosmic("windflow", StyleUbuntu)
	if !strings.HasPrefix(name, "windflow-") {
		t.Fatalf("name %q should start with prefix windflow-", name)
	}
	// windflow- plus adjective-cosmic-suffix3 is still 4 dash-joined parts.
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		t.Fatalf("name %q should be windflow-adjective-cosmic-suffix3", name)
	}
}

func TestMythologyUsesKnownWords(t *testing.T) {
	name := Mythology("", StyleNone)
	found := false
	for _, adj := range adjectives {
		for _, noun := range mythNouns {
			if name == adj+"-"+noun {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("Mythology name %q is not an adjective-mythNoun combination", name)
	}
}

func TestNamesVaryAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Animal("", StyleFull)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied output across calls, got %d unique names", len(seen))
	}
}
