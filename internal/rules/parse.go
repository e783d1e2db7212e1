package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// schema is the contract an advisory rule set has to meet. Every field
// is required; nothing is defaulted.
const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": [
    "oversold_bound", "overbought_bound", "min_trend_strength",
    "max_volatility_index", "min_volume",
    "require_price_vs_short_ma", "require_price_vs_long_ma", "require_ma_trend",
    "stop_loss_fraction", "profit_target_fraction", "max_hold_days"
  ],
  "properties": {
    "oversold_bound":            {"type": "number", "minimum": 0, "maximum": 100},
    "overbought_bound":          {"type": "number", "minimum": 0, "maximum": 100},
    "min_trend_strength":        {"type": "number", "minimum": 0, "maximum": 100},
    "max_volatility_index":      {"type": "number", "exclusiveMinimum": 0},
    "min_volume":                {"type": "number", "minimum": 0},
    "require_price_vs_short_ma": {"type": "boolean"},
    "require_price_vs_long_ma":  {"type": "boolean"},
    "require_ma_trend":          {"type": "boolean"},
    "stop_loss_fraction":        {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
    "profit_target_fraction":    {"type": "number", "exclusiveMinimum": 0},
    "max_hold_days":             {"type": "integer", "minimum": 1}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(schema)

// Parse validates an untrusted rule document (JSON, or YAML when it does
// not look like JSON) and decodes it into Thresholds. Any problem yields a
// *ConfigurationError and a zero Thresholds.
func Parse(data []byte) (Thresholds, error) {
	doc, err := toJSON(data)
	if err != nil {
		return Thresholds{}, &ConfigurationError{Reason: err.Error()}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return Thresholds{}, &ConfigurationError{Reason: fmt.Sprintf("validation error: %v", err)}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		field := ""
		if len(result.Errors()) > 0 {
			field = result.Errors()[0].Field()
		}
		return Thresholds{}, &ConfigurationError{Field: field, Reason: strings.Join(msgs, "; ")}
	}

	var t Thresholds
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Thresholds{}, &ConfigurationError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty rule document")
	}
	if trimmed[0] == '{' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("rule document is not valid JSON")
		}
		return trimmed, nil
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("rule document is neither JSON nor YAML: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("rule document is not an object")
	}
	return json.Marshal(doc)
}
