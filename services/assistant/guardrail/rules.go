// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultRules holds the rule set embedded in the binary. Loading from an
// embedded file (rather than a config path) means the classifier can never
// start with an empty or missing policy.
//
//go:embed rules.yaml
var defaultRules []byte

// =============================================================================
// Rule Types
// =============================================================================

// BlockRule terminates a query with a fixed reframe before any model call.
//
// A rule matches when any of its Patterns matches the query, or when one of
// its AnchorWords appears within Window words of one of its ContextWords.
// Either mechanism may be empty; a rule with neither never matches.
type BlockRule struct {
	// Name identifies the rule in logs and metrics.
	Name string `yaml:"name"`

	// Patterns are case-insensitive substring patterns. Patterns containing
	// ".*" are compiled as regex (prefilter convention).
	Patterns []string `yaml:"patterns"`

	// AnchorWords and ContextWords define a proximity match: an anchor and a
	// context word within Window words of each other, in either order.
	AnchorWords  []string `yaml:"anchor_words"`
	ContextWords []string `yaml:"context_words"`
	Window       int      `yaml:"window"`

	// Response is the canned, non-negotiable reframe returned to the user.
	Response string `yaml:"response"`

	compiled []compiledPattern
}

// FlagRule lets a query proceed but supplies context to prepend to the answer.
type FlagRule struct {
	Name         string   `yaml:"name"`
	Patterns     []string `yaml:"patterns"`
	AnchorWords  []string `yaml:"anchor_words"`
	ContextWords []string `yaml:"context_words"`
	Window       int      `yaml:"window"`

	// Prepend is prefixed to whatever downstream answer is produced.
	Prepend string `yaml:"prepend"`

	compiled []compiledPattern
}

// RuleSet is the ordered guardrail policy. Block rules take precedence over
// flag rules; within each list, first match wins.
//
// Thread Safety: Immutable after LoadRuleSet returns. Safe for unsynchronized
// concurrent reads.
type RuleSet struct {
	BlockRules []BlockRule `yaml:"block_rules"`
	FlagRules  []FlagRule  `yaml:"flag_rules"`
}

// compiledPattern holds a pattern string alongside its pre-compiled regex
// (nil for substring-only patterns).
type compiledPattern struct {
	raw   string
	regex *regexp.Regexp
}

// =============================================================================
// Loading
// =============================================================================

// LoadRuleSet parses and compiles a YAML rule set.
//
// Description:
//
//	Unmarshals the YAML, compiles every ".*" pattern as case-insensitive
//	regex, and validates that each rule has at least one match mechanism
//	and a non-empty response/prepend. The returned RuleSet is immutable.
//
// Inputs:
//   - raw: YAML bytes in the rules.yaml schema.
//
// Outputs:
//   - *RuleSet: The compiled rule set.
//   - error: Non-nil if the YAML is malformed, a regex does not compile,
//     or a rule is incomplete.
func LoadRuleSet(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("guardrail: failed to unmarshal rule set: %w", err)
	}

	for i := range rs.BlockRules {
		r := &rs.BlockRules[i]
		if r.Response == "" {
			return nil, fmt.Errorf("guardrail: block rule %q has no response", r.Name)
		}
		if len(r.Patterns) == 0 && (len(r.AnchorWords) == 0 || len(r.ContextWords) == 0) {
			return nil, fmt.Errorf("guardrail: block rule %q has no match mechanism", r.Name)
		}
		compiled, err := compilePatterns(r.Patterns)
		if err != nil {
			return nil, fmt.Errorf("guardrail: block rule %q: %w", r.Name, err)
		}
		r.compiled = compiled
	}

	for i := range rs.FlagRules {
		r := &rs.FlagRules[i]
		if r.Prepend == "" {
			return nil, fmt.Errorf("guardrail: flag rule %q has no prepend", r.Name)
		}
		if len(r.Patterns) == 0 && (len(r.AnchorWords) == 0 || len(r.ContextWords) == 0) {
			return nil, fmt.Errorf("guardrail: flag rule %q has no match mechanism", r.Name)
		}
		compiled, err := compilePatterns(r.Patterns)
		if err != nil {
			return nil, fmt.Errorf("guardrail: flag rule %q: %w", r.Name, err)
		}
		r.compiled = compiled
	}

	return &rs, nil
}

// DefaultRuleSet loads the rule set embedded in the binary.
//
// The embedded YAML is validated at build time by tests, so failure here
// indicates a corrupted binary; callers treat it as fatal.
func DefaultRuleSet() (*RuleSet, error) {
	return LoadRuleSet(defaultRules)
}

// compilePatterns pre-compiles a pattern list, treating ".*" patterns as regex.
// Unlike the substring path, an invalid regex is a load error here: a rule
// that silently stopped matching would be a policy hole.
func compilePatterns(patterns []string) ([]compiledPattern, error) {
	result := make([]compiledPattern, len(patterns))
	for i, pattern := range patterns {
		patternLower := strings.ToLower(pattern)
		cp := compiledPattern{raw: patternLower}
		if strings.Contains(patternLower, ".*") {
			re, err := regexp.Compile("(?i)" + patternLower)
			if err != nil {
				return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
			}
			cp.regex = re
		}
		result[i] = cp
	}
	return result, nil
}
