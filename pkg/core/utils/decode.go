// Package utils decodes hand-written documents (JSON, Hjson, TOML) into
// structs through one strict JSON path.
package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/pelletier/go-toml/v2"
)

// RepairJSON fixes common hand-editing mistakes in JSON documents.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON converts Human-friendly JSON (Hjson) into standard JSON.
// Hjson allows comments, unquoted keys and strings, and optional commas.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// ParseHJSONToStruct parses Hjson through its JSON form into schema, so the
// usual json tags apply and unknown keys are rejected.
func ParseHJSONToStruct(hjsonData string, schema interface{}) error {
	jsonData, err := ParseHJSON(hjsonData)
	if err != nil {
		return err
	}
	if err := decodeStrict(jsonData, schema); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// ParseTOMLToStruct decodes TOML through its JSON form into schema, so
// TOML documents share the json tags and the unknown-key check.
func ParseTOMLToStruct(tomlData string, schema interface{}) error {
	var result map[string]interface{}
	if err := toml.Unmarshal([]byte(tomlData), &result); err != nil {
		return fmt.Errorf("TOML_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	if err := decodeStrict(string(jsonBytes), schema); err != nil {
		return fmt.Errorf("TOML_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// SmartParse decodes input into schema, trying in order:
// 1. Standard JSON
// 2. Hjson (trailing commas, comments, unquoted keys)
// 3. JSON repair, kept only if every number survives verbatim
//
// Unknown keys fail every strategy. It returns the JSON text that decoded.
func SmartParse(input string, schema interface{}) (string, error) {
	firstErr := decodeStrict(input, schema)
	if firstErr == nil {
		return input, nil
	}

	if hjsonResult, err := ParseHJSON(input); err == nil {
		if err := decodeStrict(hjsonResult, schema); err == nil {
			return hjsonResult, nil
		}
	}

	if repaired, err := RepairJSON(input); err == nil && sameNumbers(input, repaired) {
		if err := decodeStrict(repaired, schema); err == nil {
			return repaired, nil
		}
	}

	// Leave schema zeroed rather than holding a partial decode.
	if v := reflect.ValueOf(schema); v.Kind() == reflect.Ptr && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed: %v", firstErr)
}

var numberLiteral = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)

// sameNumbers reports whether every numeric literal in repaired appears in
// original. json-repair reformats floats at single precision, which would
// change rates without any error.
func sameNumbers(original, repaired string) bool {
	seen := make(map[string]bool)
	for _, n := range numberLiteral.FindAllString(original, -1) {
		seen[n] = true
	}
	for _, n := range numberLiteral.FindAllString(repaired, -1) {
		if !seen[n] {
			return false
		}
	}
	return true
}

// decodeStrict zeroes schema first so a failed attempt leaves nothing behind
// for the next strategy.
func decodeStrict(data string, schema interface{}) error {
	if v := reflect.ValueOf(schema); v.Kind() == reflect.Ptr && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(schema)
}
