// Package mapping implements the declarative field-mapping engine. Mapping
// rows are parsed once per sync run into a Spec; the engine then extracts
// values from raw upstream records with gjson, runs them through the parsed
// transforms, and assembles per-section JSON documents with sjson.
package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// Canonical section names all wholesaler fields map into.
const (
	SectionTour      = "tour"
	SectionDeparture = "departure"
	SectionItinerary = "itinerary"
	SectionContent   = "content"
	SectionMedia     = "media"
	SectionSEO       = "seo"
)

// Sections lists the canonical section names.
var Sections = []string{
	SectionTour, SectionDeparture, SectionItinerary,
	SectionContent, SectionMedia, SectionSEO,
}

// Rule is one parsed mapping row, ready to apply.
type Rule struct {
	Section     string
	TargetField string
	APIPath     string // gjson path, empty when FixedValue is set
	FixedValue  string
	Transform   Transform
	Default     any
}

// Spec holds the parsed mapping rules for one wholesaler, grouped by section
// in declared order.
type Spec struct {
	Rules []Rule
}

// Parse validates and compiles mapping rows into a Spec. Any invalid row
// fails the whole parse; a half-applied mapping set is worse than none.
func Parse(rows []storage.FieldMapping) (*Spec, error) {
	spec := &Spec{Rules: make([]Rule, 0, len(rows))}
	for _, row := range rows {
		rule, err := parseRule(row)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindMapping,
				fmt.Sprintf("mapping %s.%s", row.Section, row.TargetField))
		}
		spec.Rules = append(spec.Rules, rule)
	}
	return spec, nil
}

func parseRule(row storage.FieldMapping) (Rule, error) {
	if row.Section == "" || row.TargetField == "" {
		return Rule{}, errs.New(errs.KindMapping, "section and target field are required")
	}
	hasPath := row.APIPath != ""
	hasFixed := row.FixedValue != ""
	if hasPath == hasFixed {
		return Rule{}, errs.New(errs.KindMapping, "exactly one of api_path and fixed_value must be set")
	}

	transform, defaultValue, err := parseTransform(row.Transform, row.TransformCfg)
	if err != nil {
		return Rule{}, err
	}

	return Rule{
		Section:     row.Section,
		TargetField: row.TargetField,
		APIPath:     normalizePath(row.APIPath),
		FixedValue:  row.FixedValue,
		Transform:   transform,
		Default:     defaultValue,
	}, nil
}

// normalizePath rewrites the `array[].field` shorthand to take the first
// element, which is what gjson addresses as `array.0.field`.
func normalizePath(path string) string {
	return strings.ReplaceAll(path, "[]", ".0")
}

// Result is the outcome of applying a Spec to one record. Warnings are
// advisory per-field failures; the record itself still mapped.
type Result struct {
	Sections map[string]json.RawMessage
	Warnings []string
}

// Section returns one assembled section document, or nil when no rule
// produced a value for it.
func (r *Result) Section(name string) json.RawMessage {
	return r.Sections[name]
}

// Field reads a single value out of an assembled section.
func (r *Result) Field(section, field string) gjson.Result {
	doc, ok := r.Sections[section]
	if !ok {
		return gjson.Result{}
	}
	return gjson.GetBytes(doc, field)
}

// Engine applies a parsed Spec to raw records.
type Engine struct {
	spec     *Spec
	resolver Resolver
}

// NewEngine creates an engine. resolver may be nil when the spec contains no
// lookup transforms.
func NewEngine(spec *Spec, resolver Resolver) *Engine {
	return &Engine{spec: spec, resolver: resolver}
}

// Apply maps one raw record into per-section documents. Individual field
// failures become warnings and leave the target field absent, so a single
// bad field never discards the record.
func (e *Engine) Apply(record json.RawMessage) (*Result, error) {
	return e.apply(record, "")
}

// ApplySection maps a record through only the rules of one section. Used for
// nested departure and itinerary records, where tour-level rules don't apply.
func (e *Engine) ApplySection(record json.RawMessage, section string) (*Result, error) {
	return e.apply(record, section)
}

func (e *Engine) apply(record json.RawMessage, section string) (*Result, error) {
	parsed := gjson.ParseBytes(record)
	if !parsed.IsObject() {
		return nil, errs.New(errs.KindMapping, "record is not a JSON object")
	}

	result := &Result{Sections: map[string]json.RawMessage{}}
	for _, rule := range e.spec.Rules {
		if section != "" && rule.Section != section {
			continue
		}
		value, err := e.applyRule(rule, parsed)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s.%s: %v", rule.Section, rule.TargetField, err))
			continue
		}
		if value == nil {
			continue
		}

		doc := result.Sections[rule.Section]
		if doc == nil {
			doc = json.RawMessage(`{}`)
		}
		updated, err := sjson.SetBytes(doc, rule.TargetField, value)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindMapping,
				fmt.Sprintf("assembling %s.%s", rule.Section, rule.TargetField))
		}
		result.Sections[rule.Section] = updated
	}

	return result, nil
}

func (e *Engine) applyRule(rule Rule, record gjson.Result) (any, error) {
	var raw any
	if rule.APIPath != "" {
		if v := record.Get(rule.APIPath); v.Exists() {
			raw = v.Value()
		}
	} else {
		raw = rule.FixedValue
	}

	value, err := rule.Transform.Apply(raw, record, e.resolver)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = rule.Default
	}
	return value, nil
}
