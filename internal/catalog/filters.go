package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// FilterSpec describes how one UI filter key reaches the remote API.
type FilterSpec struct {
	// Key is the UI-facing filter name, e.g. "type".
	Key string
	// Param is the remote API parameter name, e.g. "stoneType".
	// Empty means the same as Key.
	Param string
	Kind  FilterKind
	// Options lists the selectable UI values of a set filter. When present,
	// selections outside Options are dropped by the compiler.
	Options []string
	// Values translates a UI value to the API value. Values not listed pass
	// through unchanged.
	Values map[string]string
	// Min and Max are the default bounds of a range filter. A range equal to
	// them is not sent.
	Min float64
	Max float64
}

// ErrFilterConfig is wrapped by every filter table validation failure.
var ErrFilterConfig = errors.New("invalid filter configuration")

// FilterTable is the single mapping from UI filter keys to API parameters,
// shared by every view.
type FilterTable struct {
	specs map[string]FilterSpec
	order []string
}

// NewFilterTable validates specs and builds the table. When knownParams is
// non-empty every spec's Param must be one of them.
func NewFilterTable(specs []FilterSpec, knownParams []string) (*FilterTable, error) {
	t := &FilterTable{specs: make(map[string]FilterSpec, len(specs))}
	params := make(map[string]string, len(specs))

	for i, spec := range specs {
		spec.Key = strings.TrimSpace(spec.Key)
		spec.Param = strings.TrimSpace(spec.Param)
		if spec.Key == "" {
			return nil, fmt.Errorf("%w: filters[%d]: key is required", ErrFilterConfig, i)
		}
		if _, dup := t.specs[spec.Key]; dup {
			return nil, fmt.Errorf("%w: filter %q is declared twice", ErrFilterConfig, spec.Key)
		}
		if spec.Param == "" {
			spec.Param = spec.Key
		}
		if owner, taken := params[spec.Param]; taken {
			return nil, fmt.Errorf("%w: filters %q and %q both map to API parameter %q", ErrFilterConfig, owner, spec.Key, spec.Param)
		}
		if len(knownParams) > 0 && !slices.Contains(knownParams, spec.Param) {
			return nil, fmt.Errorf("%w: filter %q maps to unknown API parameter %q", ErrFilterConfig, spec.Key, spec.Param)
		}
		if err := validateSpec(spec); err != nil {
			return nil, err
		}
		spec.Options = slices.Clone(spec.Options)
		spec.Values = cloneStringMap(spec.Values)

		params[spec.Param] = spec.Key
		t.specs[spec.Key] = spec
		t.order = append(t.order, spec.Key)
	}
	return t, nil
}

func validateSpec(spec FilterSpec) error {
	switch spec.Kind {
	case KindSet:
		return validateSetValues(spec)
	case KindRange:
		if spec.Min > spec.Max {
			return fmt.Errorf("%w: filter %q: min %v is greater than max %v", ErrFilterConfig, spec.Key, spec.Min, spec.Max)
		}
	case KindBool:
	default:
		return fmt.Errorf("%w: filter %q: unknown kind %d", ErrFilterConfig, spec.Key, spec.Kind)
	}
	if len(spec.Values) > 0 || len(spec.Options) > 0 {
		return fmt.Errorf("%w: filter %q: options and value mappings are only valid for set filters", ErrFilterConfig, spec.Key)
	}
	return nil
}

// validateSetValues rejects mappings where two UI values end up as the same
// API value, e.g. "round" -> "Oval" while "Oval" is also selectable.
func validateSetValues(spec FilterSpec) error {
	for from := range spec.Values {
		if len(spec.Options) > 0 && !slices.Contains(spec.Options, from) {
			return fmt.Errorf("%w: filter %q maps value %q which is not one of its options", ErrFilterConfig, spec.Key, from)
		}
	}

	// Without declared options only the explicit mappings can be compared.
	candidates := spec.Options
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(spec.Values))
		for from := range spec.Values {
			candidates = append(candidates, from)
		}
		slices.Sort(candidates)
	}

	seen := make(map[string]string, len(candidates))
	for _, ui := range candidates {
		api := ui
		if mapped, ok := spec.Values[ui]; ok {
			api = mapped
		}
		if other, dup := seen[api]; dup && other != ui {
			return fmt.Errorf("%w: filter %q maps both %q and %q to API value %q", ErrFilterConfig, spec.Key, other, ui, api)
		}
		seen[api] = ui
	}
	return nil
}

// CheckView verifies that a view-level restatement of the mapping agrees
// with the table. Any divergence is a configuration error.
func (t *FilterTable) CheckView(view string, specs []FilterSpec) error {
	for _, s := range specs {
		key := strings.TrimSpace(s.Key)
		central, ok := t.specs[key]
		if !ok {
			return fmt.Errorf("%w: view %q declares filter %q which is not in the central table", ErrFilterConfig, view, key)
		}
		param := strings.TrimSpace(s.Param)
		if param == "" {
			param = key
		}
		if param != central.Param {
			return fmt.Errorf("%w: view %q maps filter %q to %q, central table maps it to %q", ErrFilterConfig, view, key, param, central.Param)
		}
		if s.Kind != central.Kind {
			return fmt.Errorf("%w: view %q declares filter %q as %s, central table has %s", ErrFilterConfig, view, key, s.Kind, central.Kind)
		}
		for from, to := range s.Values {
			if central.apiValue(from) != to {
				return fmt.Errorf("%w: view %q maps %s value %q to %q, central table maps it to %q", ErrFilterConfig, view, key, from, to, central.apiValue(from))
			}
		}
		if central.Kind == KindRange && (s.Min != central.Min || s.Max != central.Max) {
			return fmt.Errorf("%w: view %q declares %s bounds [%v, %v], central table has [%v, %v]", ErrFilterConfig, view, key, s.Min, s.Max, central.Min, central.Max)
		}
	}
	return nil
}

// Spec returns the spec for key.
func (t *FilterTable) Spec(key string) (FilterSpec, bool) {
	s, ok := t.specs[key]
	return s, ok
}

// Keys returns the UI keys in declaration order.
func (t *FilterTable) Keys() []string {
	return slices.Clone(t.order)
}

// Defaults returns the filter map of a view with nothing selected.
func (t *FilterTable) Defaults() Filters {
	out := make(Filters, len(t.order))
	for _, key := range t.order {
		s := t.specs[key]
		switch s.Kind {
		case KindSet:
			out[key] = SetOf()
		case KindRange:
			out[key] = RangeOf(s.Min, s.Max)
		case KindBool:
			out[key] = Flag(false)
		}
	}
	return out
}

// Unknown lists filter keys in f that the table does not define, sorted.
func (t *FilterTable) Unknown(f Filters) []string {
	var out []string
	for k := range f {
		if _, ok := t.specs[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// active reports whether v narrows the result set for spec.
func (s FilterSpec) active(v FilterValue) bool {
	if v.Kind != s.Kind {
		return false
	}
	switch s.Kind {
	case KindSet:
		return len(s.selected(v)) > 0
	case KindRange:
		return v.Min != s.Min || v.Max != s.Max
	default:
		return v.On
	}
}

// selected returns the API values of a set selection, in selection order.
func (s FilterSpec) selected(v FilterValue) []string {
	out := make([]string, 0, len(v.Values))
	for _, ui := range v.Values {
		ui = strings.TrimSpace(ui)
		if ui == "" {
			continue
		}
		if len(s.Options) > 0 && !slices.Contains(s.Options, ui) {
			continue
		}
		api := s.apiValue(ui)
		if !slices.Contains(out, api) {
			out = append(out, api)
		}
	}
	return out
}

func (s FilterSpec) apiValue(ui string) string {
	if mapped, ok := s.Values[ui]; ok {
		return mapped
	}
	return ui
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
