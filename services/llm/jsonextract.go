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

import "strings"

// ExtractJSONObject finds the first balanced JSON object in a model reply.
//
// Description:
//
//	Models wrap structured output in prose or markdown fences often
//	enough that strict parsing of the whole reply fails. This scans for
//	the first '{' and returns the substring up to its balancing '}',
//	tracking string literals and escapes so braces inside values do not
//	miscount.
//
// Inputs:
//   - s: The raw model reply.
//
// Outputs:
//   - string: The candidate JSON object. Callers still json.Unmarshal it.
//   - bool: False when no balanced object exists.
//
// Thread Safety: This function is safe for concurrent use.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
