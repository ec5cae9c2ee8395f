package config

import (
	"regexp"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/knadh/koanf/maps"
)

// KeyTemplate names the template an app entry inherits from
const KeyTemplate = "template"

var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// ApplyTemplate returns the app mapping with its template expanded: a clone
// of templates.<name> with the app's own keys overlaid. Mappings without a
// template key are returned as a copy.
func ApplyTemplate(app, templates map[string]interface{}) (map[string]interface{}, error) {
	name, ok := app[KeyTemplate].(string)
	if !ok {
		return maps.Copy(app), nil
	}

	tmpl, ok := templates[name].(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "could not find template %s", name).
			WithDetail("template", name)
	}

	result := map[string]interface{}{}
	if len(tmpl) > 0 {
		result = maps.Copy(tmpl)
	}
	maps.Merge(maps.Copy(app), result)
	return result, nil
}

// Variables builds the substitution table for a mapping: the host facts
// plus every top-level string value of the mapping, keyed by its own name.
func Variables(mapping map[string]interface{}, facts HostFacts) map[string]string {
	table := facts.Variables()
	for key, value := range mapping {
		if s, ok := value.(string); ok {
			table[key] = s
		}
	}
	return table
}

// Substitute expands {identifier} placeholders in every string of the
// mapping, including strings nested in sequences and sub-mappings. The
// mapping is modified in place and returned.
func Substitute(mapping map[string]interface{}, facts HostFacts) map[string]interface{} {
	table := Variables(mapping, facts)
	for key, value := range mapping {
		mapping[key] = substituteValue(value, table)
	}
	return mapping
}

// SubstituteString performs one pass over s. Values produced by a
// replacement are not expanded again and unknown names are left as written.
func SubstituteString(s string, table map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if replacement, ok := table[match[1:len(match)-1]]; ok {
			return replacement
		}
		return match
	})
}

func substituteValue(value interface{}, table map[string]string) interface{} {
	switch v := value.(type) {
	case string:
		return SubstituteString(v, table)
	case []interface{}:
		for i := range v {
			v[i] = substituteValue(v[i], table)
		}
		return v
	case map[string]interface{}:
		for key := range v {
			v[key] = substituteValue(v[key], table)
		}
		return v
	default:
		return value
	}
}
