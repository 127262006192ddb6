package contribution

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks instance (as decoded by encoding/json) against the schema.
// The returned error is only set when the schema itself cannot be compiled.
func (s *Schema) Validate(instance any) ([]Violation, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	c.AssertFormat = true
	if err := c.AddResource("contribution.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	compiled, err := c.Compile("contribution.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	err = compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var out []Violation
	for _, leaf := range leaves(ve, nil) {
		out = append(out, describe(leaf, doc, instance)...)
	}
	return out, nil
}

func leaves(ve *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(acc, ve)
	}
	for _, c := range ve.Causes {
		acc = leaves(c, acc)
	}
	return acc
}

// describe renders a leaf error the way python-jsonschema words it, which
// is what existing clients match on.
func describe(ve *jsonschema.ValidationError, doc, instance any) []Violation {
	path := strings.TrimPrefix(ve.InstanceLocation, "/")
	value, _ := pointer(instance, ve.InstanceLocation)
	keyword := ve.KeywordLocation[strings.LastIndex(ve.KeywordLocation, "/")+1:]
	arg, _ := pointer(doc, ve.KeywordLocation)

	var msg string
	switch keyword {
	case "enum":
		items, _ := arg.([]any)
		reprs := make([]string, len(items))
		for i, it := range items {
			reprs[i] = repr(it)
		}
		msg = fmt.Sprintf("%s is not one of [%s]", repr(value), strings.Join(reprs, ", "))
	case "required":
		var out []Violation
		for _, name := range missing(ve.Message) {
			out = append(out, Violation{Path: name, Message: fmt.Sprintf("%s is a required property", repr(name))})
		}
		if len(out) > 0 {
			return out
		}
		msg = ve.Message
	case "format":
		msg = fmt.Sprintf("%s is not a %s", repr(value), repr(arg))
	case "type":
		msg = fmt.Sprintf("%s is not of type %s", repr(value), repr(arg))
	case "maxLength":
		msg = fmt.Sprintf("%s is too long", repr(value))
	default:
		msg = ve.Message
	}
	return []Violation{{Path: path, Message: msg}}
}

// missing extracts the names from `missing properties: 'a', 'b'`.
func missing(message string) []string {
	_, list, ok := strings.Cut(message, ":")
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 || part[0] != '\'' || part[len(part)-1] != '\'' {
			continue
		}
		out = append(out, strings.ReplaceAll(part[1:len(part)-1], `\'`, `'`))
	}
	return out
}

// pointer resolves a JSON pointer ("/a/0/b") inside a decoded document.
func pointer(v any, ptr string) (any, bool) {
	if ptr == "" || ptr == "/" {
		return v, true
	}
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch cur := v.(type) {
		case map[string]any:
			next, ok := cur[tok]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur) {
				return nil, false
			}
			v = cur[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		if strings.Contains(x, "'") && !strings.Contains(x, `"`) {
			return `"` + x + `"`
		}
		return "'" + strings.ReplaceAll(x, "'", `\'`) + "'"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
