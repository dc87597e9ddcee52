// parser_structured.go: Structured data parsers for Morpheus
//
// This file contains parsers for structured data formats:
// - JSON (JavaScript Object Notation)
// - YAML (YAML Ain't Markup Language)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// parseJSON decodes a JSON document whose top-level value is an object.
// Numbers are kept as json.Number so integers never lose precision.
func parseJSON(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, wrapSyntaxError(err, FormatJSON)
	}

	// Trailing content after the first document is not JSON.
	var trailing interface{}
	if err := decoder.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, syntaxError(FormatJSON, "unexpected content after top-level value")
		}
		return nil, wrapSyntaxError(err, FormatJSON)
	}

	return topLevelMapping(value, FormatJSON)
}

// parseYAML decodes a single YAML document into generic values.
// Only standard tags are resolved; the empty document yields an empty map.
// A key repeated in one mapping keeps its last value.
func parseYAML(data []byte) (map[string]interface{}, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, wrapSyntaxError(err, FormatYAML)
	}
	dropDuplicateKeys(&document, make(map[*yaml.Node]bool))

	var value interface{}
	if document.Kind != 0 {
		if err := document.Decode(&value); err != nil {
			return nil, wrapSyntaxError(err, FormatYAML)
		}
	}

	if value == nil {
		return make(map[string]interface{}), nil
	}

	return topLevelMapping(value, FormatYAML)
}

// dropDuplicateKeys removes every earlier occurrence of a repeated scalar key
// from the mappings below node.
func dropDuplicateKeys(node *yaml.Node, seen map[*yaml.Node]bool) {
	if node == nil || seen[node] {
		return
	}
	seen[node] = true

	if node.Kind == yaml.MappingNode {
		last := make(map[string]int, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			if key := node.Content[i]; key.Kind == yaml.ScalarNode {
				last[key.Value] = i
			}
		}

		content := make([]*yaml.Node, 0, len(node.Content))
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind == yaml.ScalarNode && last[key.Value] != i {
				continue
			}
			content = append(content, key, node.Content[i+1])
		}
		node.Content = content
	}

	for _, child := range node.Content {
		dropDuplicateKeys(child, seen)
	}
	dropDuplicateKeys(node.Alias, seen)
}

// topLevelMapping enforces a mapping at the top level and normalizes it.
func topLevelMapping(value interface{}, format Format) (map[string]interface{}, error) {
	normalized, ok := normalizeValue(value).(map[string]interface{})
	if !ok {
		return nil, syntaxError(format, fmt.Sprintf("top-level value must be a mapping, got %T", value))
	}
	return normalized, nil
}
