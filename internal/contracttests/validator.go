package contracttests

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// JSONRPCEnvelope validates JSON-RPC 2.0 envelope structure
type JSONRPCEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ValidateEnvelope validates JSON-RPC 2.0 response envelope compliance.
// A null id is accepted only on error responses (parse errors have no id to echo).
func ValidateEnvelope(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	var envelope JSONRPCEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if envelope.JSONRPC != "2.0" {
		return fmt.Errorf("jsonrpc must be '2.0', got '%s'", envelope.JSONRPC)
	}

	if _, ok := raw["id"]; !ok {
		return fmt.Errorf("id field is required")
	}

	hasResult := len(envelope.Result) > 0
	hasError := len(envelope.Error) > 0

	if hasResult && hasError {
		return fmt.Errorf("both result and error cannot be present")
	}

	if !hasResult && !hasError {
		return fmt.Errorf("either result or error must be present")
	}

	if envelope.ID == nil && !hasError {
		return fmt.Errorf("id may only be null on error responses")
	}

	return nil
}

// ValidateProcessResult validates the result of process_command and
// process_local_command: the accumulated text must end with the normalised text.
func ValidateProcessResult(result json.RawMessage) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(result, &obj); err != nil {
		return fmt.Errorf("result must be an object: %w", err)
	}

	normalized, ok := obj["normalized"].(string)
	if !ok {
		return fmt.Errorf("normalized field must be a string")
	}
	accumulated, ok := obj["accumulated"].(string)
	if !ok {
		return fmt.Errorf("accumulated field must be a string")
	}

	if normalized == "" {
		return fmt.Errorf("normalized must not be empty")
	}
	if accumulated != normalized && !strings.HasSuffix(accumulated, ","+normalized) {
		return fmt.Errorf("accumulated %q does not end with normalized %q", accumulated, normalized)
	}
	for _, sub := range strings.Split(normalized, ",") {
		if strings.TrimSpace(sub) != sub || sub == "" {
			return fmt.Errorf("sub-command %q is empty or padded", sub)
		}
	}
	return nil
}

// ValidateStatusResult validates the structure of a device_status result
func ValidateStatusResult(result json.RawMessage) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(result, &obj); err != nil {
		return fmt.Errorf("result must be an object: %w", err)
	}

	if _, ok := obj["mode"].(string); !ok {
		return fmt.Errorf("mode field must be a string")
	}

	pins, ok := obj["pins"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("pins field must be an object")
	}
	for pin, level := range pins {
		if _, ok := level.(string); !ok {
			return fmt.Errorf("pin %s level must be a string", pin)
		}
	}

	motion, ok := obj["motion"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("motion field must be an object")
	}
	if _, ok := motion["state"].(string); !ok {
		return fmt.Errorf("motion.state must be a string")
	}

	return nil
}

// ValidateArrayStringResult validates that a result is an array of strings
func ValidateArrayStringResult(result json.RawMessage) error {
	var arr []string
	if err := json.Unmarshal(result, &arr); err != nil {
		return fmt.Errorf("result must be array of strings: %w", err)
	}
	return nil
}

// ValidateArrayObjectResult validates that a result is an array of objects
func ValidateArrayObjectResult(result json.RawMessage) error {
	var arr []map[string]interface{}
	if err := json.Unmarshal(result, &arr); err != nil {
		return fmt.Errorf("result must be array of objects: %w", err)
	}
	return nil
}

// ValidateErrorResponse validates JSON-RPC error structure
func ValidateErrorResponse(errorData json.RawMessage) error {
	var errorObj map[string]interface{}
	if err := json.Unmarshal(errorData, &errorObj); err != nil {
		return fmt.Errorf("error must be an object: %w", err)
	}

	code, hasCode := errorObj["code"]
	if !hasCode {
		return fmt.Errorf("error object must have 'code' field")
	}

	message, hasMessage := errorObj["message"]
	if !hasMessage {
		return fmt.Errorf("error object must have 'message' field")
	}

	if _, ok := code.(float64); !ok {
		return fmt.Errorf("error code must be numeric")
	}

	if _, ok := message.(string); !ok {
		return fmt.Errorf("error message must be string")
	}

	return nil
}

// CompareEnvelopes compares two JSON-RPC envelopes for structural equality.
// Results must be equal as JSON; errors must share code and message.
func CompareEnvelopes(expected, actual []byte) error {
	if err := ValidateEnvelope(expected); err != nil {
		return fmt.Errorf("expected envelope invalid: %w", err)
	}
	if err := ValidateEnvelope(actual); err != nil {
		return fmt.Errorf("actual envelope invalid: %w", err)
	}

	var expEnv, actEnv JSONRPCEnvelope
	if err := json.Unmarshal(expected, &expEnv); err != nil {
		return fmt.Errorf("failed to unmarshal expected: %w", err)
	}
	if err := json.Unmarshal(actual, &actEnv); err != nil {
		return fmt.Errorf("failed to unmarshal actual: %w", err)
	}

	// ids may differ in type but not value
	if fmt.Sprintf("%v", expEnv.ID) != fmt.Sprintf("%v", actEnv.ID) {
		return fmt.Errorf("id mismatch: expected '%v', got '%v'", expEnv.ID, actEnv.ID)
	}

	if len(expEnv.Result) > 0 {
		if len(actEnv.Result) == 0 {
			return fmt.Errorf("expected result but got none")
		}
		equal, err := jsonEqual(expEnv.Result, actEnv.Result)
		if err != nil {
			return err
		}
		if !equal {
			return fmt.Errorf("result mismatch: expected %s, got %s", expEnv.Result, actEnv.Result)
		}
		return nil
	}

	if len(actEnv.Error) == 0 {
		return fmt.Errorf("expected error but got none")
	}
	var expErr, actErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(expEnv.Error, &expErr); err != nil {
		return fmt.Errorf("failed to unmarshal expected error: %w", err)
	}
	if err := json.Unmarshal(actEnv.Error, &actErr); err != nil {
		return fmt.Errorf("failed to unmarshal actual error: %w", err)
	}
	if expErr != actErr {
		return fmt.Errorf("error mismatch: expected %d %q, got %d %q", expErr.Code, expErr.Message, actErr.Code, actErr.Message)
	}
	return nil
}

func jsonEqual(a, b json.RawMessage) (bool, error) {
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}
	return reflect.DeepEqual(av, bv), nil
}
