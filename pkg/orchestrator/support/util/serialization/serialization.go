// Package serialization provides JSON helpers for the orchestrator's opaque
// key-value structures (job configs, handler outputs, checkpoint state).
package serialization

import (
	"encoding/json"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

const moduleName = "serialization"

// MarshalMap serializes a key-value map into a JSON byte slice.
// A nil map serializes to an empty JSON object.
func MarshalMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, &exception.OrchestratorError{
			Kind: exception.ErrConfig, Module: moduleName,
			Message: "failed to serialize map", Err: err,
		}
	}
	return data, nil
}

// UnmarshalMap deserializes a JSON byte slice into a key-value map.
// Empty input yields an empty map.
func UnmarshalMap(data []byte, m *map[string]interface{}) error {
	if *m == nil {
		*m = make(map[string]interface{})
	} else {
		for k := range *m {
			delete(*m, k)
		}
	}
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return &exception.OrchestratorError{
			Kind: exception.ErrConfig, Module: moduleName,
			Message: "failed to deserialize map", Err: err,
		}
	}
	return nil
}

// DeepCopyMap clones a key-value map through a JSON round trip. Nested maps,
// slices and scalars are fully detached from the source; the result shares no
// mutable state with the input. Returns an empty map for nil input.
func DeepCopyMap(m map[string]interface{}) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}
	data, err := MarshalMap(m)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := UnmarshalMap(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
