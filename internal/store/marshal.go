package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/loopsmith/internal/ir"
)

// marshalApplied converts the applied flag list to canonical JSON TEXT.
func marshalApplied(applied []string) (string, error) {
	if applied == nil {
		applied = []string{}
	}
	data, err := ir.MarshalCanonical(applied)
	if err != nil {
		return "", fmt.Errorf("marshal applied: %w", err)
	}
	return string(data), nil
}

// checkJSON rejects TEXT that is not a single JSON value. Empty input
// stores the given fallback.
func checkJSON(field string, data json.RawMessage, fallback string) (string, error) {
	if len(data) == 0 {
		return fallback, nil
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("marshal %s: invalid JSON", field)
	}
	return string(data), nil
}

// unmarshalApplied parses the applied flag list.
func unmarshalApplied(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var applied []string
	if err := json.Unmarshal([]byte(data), &applied); err != nil {
		return nil, fmt.Errorf("unmarshal applied: %w", err)
	}
	if applied == nil {
		applied = []string{}
	}
	return applied, nil
}
