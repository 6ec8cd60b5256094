// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONObject_Bare(t *testing.T) {
	got, ok := ExtractJSONObject(`{"score": 4}`)
	if !ok {
		t.Fatal("bare object should extract")
	}
	if got != `{"score": 4}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractJSONObject_ProseWrapped(t *testing.T) {
	input := "Here is my evaluation:\n```json\n{\"score\": 4, \"flags\": []}\n```\nLet me know if you need more."
	got, ok := ExtractJSONObject(input)
	if !ok {
		t.Fatal("fenced object should extract")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("extracted text does not parse: %v", err)
	}
	if parsed["score"].(float64) != 4 {
		t.Errorf("wrong score in extraction: %v", parsed["score"])
	}
}

func TestExtractJSONObject_Nested(t *testing.T) {
	input := `prefix {"outer": {"inner": 1}, "n": 2} suffix {"second": true}`
	got, ok := ExtractJSONObject(input)
	if !ok {
		t.Fatal("nested object should extract")
	}
	if got != `{"outer": {"inner": 1}, "n": 2}` {
		t.Errorf("should return the first balanced object, got: %s", got)
	}
}

func TestExtractJSONObject_BracesInStrings(t *testing.T) {
	input := `{"note": "a } inside and a \" escaped quote", "ok": true}`
	got, ok := ExtractJSONObject(input)
	if !ok {
		t.Fatal("object with braces inside strings should extract")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("extracted text does not parse: %v", err)
	}
	if parsed["ok"] != true {
		t.Error("trailing field lost")
	}
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	if _, ok := ExtractJSONObject(`{"score": 4`); ok {
		t.Error("unbalanced object should not extract")
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	if _, ok := ExtractJSONObject("no json here at all"); ok {
		t.Error("prose without braces should not extract")
	}
	if _, ok := ExtractJSONObject(""); ok {
		t.Error("empty string should not extract")
	}
}
