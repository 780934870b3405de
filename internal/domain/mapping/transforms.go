package mapping

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// Transform kinds stored on mapping rows.
const (
	TransformDirect   = "direct"
	TransformValueMap = "value_map"
	TransformLookup   = "lookup"
	TransformTemplate = "template"
	TransformSplit    = "split"
)

// Split sub-modes. The legacy configuration overloaded "split" to also mean
// join and replace; the mode is explicit here and required.
const (
	SplitModeSplit   = "split"
	SplitModeJoin    = "join"
	SplitModeReplace = "replace"
)

// Reference kinds resolvable through the lookup transform.
const (
	LookupCountry   = "country"
	LookupTransport = "transport"
)

// Resolver resolves an external reference token to an internal ID.
// Implemented by the lookup package.
type Resolver interface {
	Resolve(kind, token string, autoCreate bool) (int64, error)
}

// Transform is one parsed variant of the transform union. Apply returns the
// transformed value, or nil when the input produced nothing.
type Transform interface {
	Apply(raw any, record gjson.Result, resolver Resolver) (any, error)
}

// transformConfig is the superset of transform configuration blobs. Which
// fields matter depends on the transform kind.
type transformConfig struct {
	// common
	Default any `json:"default,omitempty"`

	// value_map
	Table map[string]string `json:"table,omitempty"`

	// lookup
	Ref        string `json:"ref,omitempty"` // "country" or "transport"
	AutoCreate bool   `json:"auto_create,omitempty"`

	// template
	Template string `json:"template,omitempty"`

	// split
	Mode      string `json:"mode,omitempty"`
	Separator string `json:"separator,omitempty"`
	Index     *int   `json:"index,omitempty"`
	Old       string `json:"old,omitempty"`
	New       string `json:"new,omitempty"`
}

// parseTransform builds the parsed transform variant for a mapping row.
// Validation happens here, once per sync run, not per record.
func parseTransform(kind, rawConfig string) (Transform, any, error) {
	cfg := transformConfig{}
	if rawConfig != "" {
		if err := json.Unmarshal([]byte(rawConfig), &cfg); err != nil {
			return nil, nil, errs.Wrap(err, errs.KindMapping, "invalid transform config")
		}
	}

	switch kind {
	case "", TransformDirect:
		return directTransform{}, cfg.Default, nil

	case TransformValueMap:
		if len(cfg.Table) == 0 {
			return nil, nil, errs.New(errs.KindMapping, "value_map transform requires a table")
		}
		return valueMapTransform{table: cfg.Table}, cfg.Default, nil

	case TransformLookup:
		if cfg.Ref != LookupCountry && cfg.Ref != LookupTransport {
			return nil, nil, errs.Newf(errs.KindMapping, "lookup transform ref must be %q or %q", LookupCountry, LookupTransport)
		}
		return lookupTransform{ref: cfg.Ref, autoCreate: cfg.AutoCreate}, cfg.Default, nil

	case TransformTemplate:
		if cfg.Template == "" {
			return nil, nil, errs.New(errs.KindMapping, "template transform requires a template")
		}
		return templateTransform{template: cfg.Template}, cfg.Default, nil

	case TransformSplit:
		switch cfg.Mode {
		case SplitModeSplit:
			index := 0
			if cfg.Index != nil {
				index = *cfg.Index
			}
			return splitTransform{separator: defaultSeparator(cfg.Separator), index: index}, cfg.Default, nil
		case SplitModeJoin:
			return joinTransform{separator: defaultSeparator(cfg.Separator)}, cfg.Default, nil
		case SplitModeReplace:
			if cfg.Old == "" {
				return nil, nil, errs.New(errs.KindMapping, "replace mode requires old")
			}
			return replaceTransform{old: cfg.Old, new: cfg.New}, cfg.Default, nil
		default:
			return nil, nil, errs.Newf(errs.KindMapping, "split transform requires mode of %q, %q or %q",
				SplitModeSplit, SplitModeJoin, SplitModeReplace)
		}
	}

	return nil, nil, errs.Newf(errs.KindMapping, "unknown transform %q", kind)
}

func defaultSeparator(s string) string {
	if s == "" {
		return ","
	}
	return s
}

// directTransform passes the extracted value through.
type directTransform struct{}

func (directTransform) Apply(raw any, _ gjson.Result, _ Resolver) (any, error) {
	return raw, nil
}

// valueMapTransform looks the value up in a table, passing unmapped values
// through unchanged.
type valueMapTransform struct {
	table map[string]string
}

func (t valueMapTransform) Apply(raw any, _ gjson.Result, _ Resolver) (any, error) {
	if raw == nil {
		return nil, nil
	}
	key := fmt.Sprintf("%v", raw)
	if mapped, ok := t.table[key]; ok {
		return mapped, nil
	}
	return raw, nil
}

// lookupTransform delegates to the lookup resolver.
type lookupTransform struct {
	ref        string
	autoCreate bool
}

func (t lookupTransform) Apply(raw any, _ gjson.Result, resolver Resolver) (any, error) {
	if raw == nil {
		return nil, nil
	}
	token := strings.TrimSpace(fmt.Sprintf("%v", raw))
	if token == "" {
		return nil, nil
	}
	if resolver == nil {
		return nil, errs.New(errs.KindConfiguration, "lookup transform requires a resolver")
	}
	id, err := resolver.Resolve(t.ref, token, t.autoCreate)
	if err != nil {
		return nil, err
	}
	return id, nil
}

var templateTokenPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// templateTransform interpolates {Field} tokens against the source record.
type templateTransform struct {
	template string
}

func (t templateTransform) Apply(_ any, record gjson.Result, _ Resolver) (any, error) {
	missing := ""
	out := templateTokenPattern.ReplaceAllStringFunc(t.template, func(token string) string {
		field := token[1 : len(token)-1]
		if v := record.Get(field); v.Exists() {
			return v.String()
		}
		missing = field
		return ""
	})
	if missing != "" {
		return nil, errs.Newf(errs.KindMapping, "template field %q absent from record", missing)
	}
	return out, nil
}

// splitTransform splits a string and selects one element. A negative index
// keeps the whole slice.
type splitTransform struct {
	separator string
	index     int
}

func (t splitTransform) Apply(raw any, _ gjson.Result, _ Resolver) (any, error) {
	if raw == nil {
		return nil, nil
	}
	parts := strings.Split(fmt.Sprintf("%v", raw), t.separator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if t.index < 0 {
		return parts, nil
	}
	if t.index >= len(parts) {
		return nil, nil
	}
	return parts[t.index], nil
}

// joinTransform joins an array value into one string.
type joinTransform struct {
	separator string
}

func (t joinTransform) Apply(raw any, _ gjson.Result, _ Resolver) (any, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, t.separator), nil
	case []string:
		return strings.Join(val, t.separator), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

// replaceTransform substitutes all occurrences of old with new.
type replaceTransform struct {
	old, new string
}

func (t replaceTransform) Apply(raw any, _ gjson.Result, _ Resolver) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return strings.ReplaceAll(fmt.Sprintf("%v", raw), t.old, t.new), nil
}
