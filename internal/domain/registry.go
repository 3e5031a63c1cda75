package domain

import "regexp"

// DefaultType is the measurement type assumed when a caller requests none.
const DefaultType = "temperature"

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SanitizeAlias strips every character outside [A-Za-z0-9] from a
// measurement type label, yielding a string safe to interpolate as a
// SQL column alias. May return "".
func SanitizeAlias(name string) string {
	return nonAlnum.ReplaceAllString(name, "")
}

// Registry maps measurement type labels to their internal ids and
// sanitized column aliases. It is built once from the store's
// immutable reference set and is safe for concurrent use.
type Registry struct {
	types   []DataType
	byLabel map[string]DataType
}

// NewRegistry builds a registry over the given reference set.
func NewRegistry(types []DataType) *Registry {
	byLabel := make(map[string]DataType, len(types))
	for _, t := range types {
		byLabel[t.Label] = t
	}
	return &Registry{types: types, byLabel: byLabel}
}

// Types returns the full reference set in store order.
func (r *Registry) Types() []DataType {
	return r.types
}

// Resolve maps requested labels to resolved types in request order.
// An empty request defaults to DefaultType. Labels that sanitize to an
// empty alias are dropped; exact duplicate labels are collapsed.
//
// Fails with UnknownMeasurementTypeError for a label missing from the
// reference set, DuplicateAliasError when two distinct labels collapse
// to one alias, and ErrEmptyTypeSet when nothing usable remains.
func (r *Registry) Resolve(names []string) ([]ResolvedType, error) {
	if len(names) == 0 {
		names = []string{DefaultType}
	}

	// Sanitize and check alias collisions across the whole request
	// first: a colliding configuration must fail regardless of which
	// labels exist.
	type pair struct {
		name  string
		alias string
	}
	pairs := make([]pair, 0, len(names))
	byAlias := make(map[string]string, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		alias := SanitizeAlias(name)
		if alias == "" {
			continue
		}
		if first, ok := byAlias[alias]; ok {
			return nil, &DuplicateAliasError{Alias: alias, First: first, Second: name}
		}
		byAlias[alias] = name
		pairs = append(pairs, pair{name: name, alias: alias})
	}
	if len(pairs) == 0 {
		return nil, ErrEmptyTypeSet
	}

	resolved := make([]ResolvedType, 0, len(pairs))
	for _, p := range pairs {
		dt, ok := r.byLabel[p.name]
		if !ok {
			return nil, &UnknownMeasurementTypeError{Name: p.name}
		}
		resolved = append(resolved, ResolvedType{Name: p.name, TypeID: dt.ID, Alias: p.alias})
	}
	return resolved, nil
}
