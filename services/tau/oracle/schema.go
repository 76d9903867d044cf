// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pedronobrol/tau/services/tau/translate"
)

// extractJSON pulls the outermost {...} object from a model response, which
// may wrap the JSON in prose or code fences despite the prompt.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", ErrSchema)
	}
	return text[start : end+1], nil
}

// parseContract validates the strict contract schema: an "invariants" list
// of strings and a "variant" string, both required.
func parseContract(text string) (*translate.LoopContract, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	invRaw, ok := raw["invariants"]
	if !ok {
		return nil, fmt.Errorf("%w: missing invariants", ErrSchema)
	}
	var invariants []string
	if err := json.Unmarshal(invRaw, &invariants); err != nil {
		return nil, fmt.Errorf("%w: invariants must be a list of strings", ErrSchema)
	}

	varRaw, ok := raw["variant"]
	if !ok {
		return nil, fmt.Errorf("%w: missing variant", ErrSchema)
	}
	var variant string
	if err := json.Unmarshal(varRaw, &variant); err != nil {
		return nil, fmt.Errorf("%w: variant must be a string", ErrSchema)
	}

	return &translate.LoopContract{Invariants: invariants, Variant: variant}, nil
}

// parseBugAnalysis validates the classification schema. bug_detected is
// required; a string "true"/"false" is coerced, since models sometimes quote
// booleans.
func parseBugAnalysis(text string) (*BugAnalysis, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	detectedRaw, ok := raw["bug_detected"]
	if !ok {
		return nil, fmt.Errorf("%w: missing bug_detected", ErrSchema)
	}

	detected, err := coerceBool(detectedRaw)
	if err != nil {
		return nil, err
	}

	var fields struct {
		BugType             string   `json:"bug_type"`
		Explanation         string   `json:"explanation"`
		ActualBehavior      string   `json:"actual_behavior"`
		ExpectedBehavior    string   `json:"expected_behavior"`
		Analysis            string   `json:"analysis"`
		SuggestedInvariants []string `json:"suggested_invariants"`
	}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	return &BugAnalysis{
		BugDetected:         detected,
		BugType:             fields.BugType,
		Explanation:         fields.Explanation,
		ActualBehavior:      fields.ActualBehavior,
		ExpectedBehavior:    fields.ExpectedBehavior,
		Analysis:            fields.Analysis,
		SuggestedInvariants: fields.SuggestedInvariants,
	}, nil
}

// coerceBool accepts a JSON boolean or the quoted strings "true"/"false",
// which models sometimes emit.
func coerceBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(s, "true"), nil
	}
	return false, fmt.Errorf("%w: bug_detected must be a boolean", ErrSchema)
}

// truncateTail keeps the last max bytes of prover output, which is where
// why3 puts its verdicts.
func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
