// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

// sanitizeForSpreadsheet neutralizes spreadsheet formula injection.
//
// Description:
//
//	Webhook payloads end up pasted into spreadsheets by reviewers. A
//	value starting with =, +, -, @, tab, or carriage return would be
//	interpreted as a formula there, so it gets a leading apostrophe,
//	which spreadsheets render as literal text.
//
// Inputs:
//   - s: Any free-text field bound for the webhook.
//
// Outputs:
//   - string: Unchanged, or prefixed with a single quote.
//
// Thread Safety: Pure function, safe for concurrent use.
func sanitizeForSpreadsheet(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
