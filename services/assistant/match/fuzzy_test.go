// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import "testing"

func TestDistance_Identical(t *testing.T) {
	if d := Distance("Stuyvesant", "stuyvesant"); d != 0 {
		t.Errorf("case-insensitive equal strings should have distance 0, got %d", d)
	}
	if d := Distance("  Bronx Science ", "bronx science"); d != 0 {
		t.Errorf("trimmed equal strings should have distance 0, got %d", d)
	}
}

func TestDistance_Empty(t *testing.T) {
	if d := Distance("", "abc"); d != 3 {
		t.Errorf("empty query should degenerate to candidate length, got %d", d)
	}
	if d := Distance("", ""); d != 0 {
		t.Errorf("two empty strings should have distance 0, got %d", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"brooklyn", "brookln"},
		{"charter", "chartre"},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if ab != ba {
			t.Errorf("Distance(%q,%q)=%d != Distance(%q,%q)=%d", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestDistance_TriangleInequality(t *testing.T) {
	a, b, c := "queens", "queen", "quens"
	ab := Distance(a, b)
	bc := Distance(b, c)
	ac := Distance(a, c)
	if ac > ab+bc {
		t.Errorf("triangle inequality violated: d(a,c)=%d > d(a,b)+d(b,c)=%d", ac, ab+bc)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	if d := Distance("kitten", "sitting"); d != 3 {
		t.Errorf("kitten/sitting should be 3, got %d", d)
	}
	if d := Distance("flaw", "lawn"); d != 2 {
		t.Errorf("flaw/lawn should be 2, got %d", d)
	}
}

type school struct{ name string }

func schoolKey(s school) string { return s.name }

func TestFindMatches_ExactFirst(t *testing.T) {
	candidates := []school{
		{"PS 321 William Penn"},
		{"Brooklyn Technical High School"},
		{"Bronx Science"},
	}

	matches := FindMatches("bronx science", candidates, schoolKey, 3, 5)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Distance != 0 {
		t.Errorf("exact match should be first with distance 0, got %d", matches[0].Distance)
	}
	if matches[0].Item.name != "Bronx Science" {
		t.Errorf("wrong first match: %q", matches[0].Item.name)
	}
}

func TestFindMatches_SortedAndBounded(t *testing.T) {
	candidates := []school{
		{"alpha"}, {"alphb"}, {"alphbc"}, {"alpxyz"}, {"beta"}, {"alph"},
	}

	matches := FindMatches("alpha", candidates, schoolKey, 3, 3)
	if len(matches) > 3 {
		t.Fatalf("limit not applied: got %d matches", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("matches not sorted ascending at index %d", i)
		}
	}
	for _, m := range matches {
		if m.Distance > 3 {
			t.Errorf("match %q exceeds maxDistance: %d", m.Item.name, m.Distance)
		}
	}
}

func TestFindMatches_WordLevelFallback(t *testing.T) {
	candidates := []school{{"Brooklyn Technical High School"}}

	// Full-name distance is far beyond 3, but the word "brooklyn" is 1 away.
	matches := FindMatches("brookln", candidates, schoolKey, 3, 5)
	if len(matches) != 1 {
		t.Fatalf("expected word-level match, got %d results", len(matches))
	}
	if matches[0].Distance != 1 {
		t.Errorf("expected word-level distance 1, got %d", matches[0].Distance)
	}
}

func TestFindMatches_ShortWordsIgnored(t *testing.T) {
	candidates := []school{{"PS 11 of the Arts"}}

	// "of" and "PS" are below the word-length floor; only real words count.
	matches := FindMatches("xx", candidates, schoolKey, 1, 5)
	if len(matches) != 0 {
		t.Errorf("short key words should not produce matches, got %d", len(matches))
	}
}

func TestFindMatches_EmptyCandidates(t *testing.T) {
	matches := FindMatches("anything", nil, schoolKey, 3, 5)
	if len(matches) != 0 {
		t.Errorf("empty candidate list should yield empty result, got %d", len(matches))
	}
}

func TestFindMatches_EmptyQuery(t *testing.T) {
	candidates := []school{{"abc"}, {"ab"}}

	// Distance degenerates to candidate length; both within maxDistance 3.
	matches := FindMatches("", candidates, schoolKey, 3, 5)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches for empty query, got %d", len(matches))
	}
	if matches[0].Distance != 2 || matches[1].Distance != 3 {
		t.Errorf("unexpected distances: %d, %d", matches[0].Distance, matches[1].Distance)
	}
}
