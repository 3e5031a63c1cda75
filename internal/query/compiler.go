// Package query compiles profile aggregation requests into a single
// parameterized SQL statement over the four-level join, with one
// pivoted value column per requested measurement type.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonasfh/xover/internal/domain"
)

// ErrNoDataSets reports a request naming no data set ids.
var ErrNoDataSets = errors.New("at least one data set id is required")

// safeAlias whitelists aliases before interpolation. The registry
// already sanitizes; this is the compiler's own guard since aliases are
// the only request-derived text spliced into SQL.
var safeAlias = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Bounds is a latitude/longitude box filter on station positions.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Request describes one aggregation pass.
type Request struct {
	DataSetIDs []int64
	Types      []domain.ResolvedType
	Bounds     *Bounds
	MinDepth   float64 // exclusive lower depth bound when > 0
	MaxDepth   float64 // exclusive upper depth bound when > 0
}

// Query is a compiled statement: SQL text with $n placeholders, its
// bind arguments in order, and the output column names beyond the
// fixed positional ones.
type Query struct {
	SQL           string
	Args          []any
	OutputColumns []string
}

// fixedSelect lists the positional columns every profile query starts
// with; the assembler's Row layout mirrors it.
const fixedSelect = `SELECT ds.id AS data_set_id, ds.expocode,
  s.id AS station_id, s.station_number,
  st_y(s.position) AS latitude, st_x(s.position) AS longitude,
  c.id AS cast_id, c.cast_no,
  d.id AS depth_id, d.depth, d.date_and_time`

// Compile builds the aggregation query for one request.
//
// Every scalar filter value binds as a parameter. The only interpolated
// request-derived text is the sanitized type alias, re-validated here
// against the alphanumeric whitelist. Rows where every requested value
// is NULL are filtered out at the SQL level, and the ORDER BY is the
// assembler's ordering contract, not an optimization.
func Compile(req Request) (Query, error) {
	if len(req.DataSetIDs) == 0 {
		return Query{}, ErrNoDataSets
	}
	if len(req.Types) == 0 {
		return Query{}, domain.ErrEmptyTypeSet
	}
	for _, t := range req.Types {
		if !safeAlias.MatchString(t.Alias) {
			return Query{}, fmt.Errorf("measurement type %q has unsafe alias %q", t.Name, t.Alias)
		}
	}

	var (
		sel      strings.Builder
		joins    strings.Builder
		args     []any
		notNulls []string
		columns  = []string{"depth_id", "depth", "date_and_time"}
	)
	sel.WriteString(fixedSelect)

	joins.WriteString("\nFROM data_sets ds")
	joins.WriteString("\nINNER JOIN stations s ON ds.id = s.data_set_id")
	joins.WriteString("\nINNER JOIN casts c ON s.id = c.station_id")
	joins.WriteString("\nINNER JOIN depths d ON c.id = d.cast_id")

	for _, t := range req.Types {
		args = append(args, t.TypeID)
		fmt.Fprintf(&sel, ",\n  %s.value AS %s", t.Alias, t.Column())
		fmt.Fprintf(&joins, "\nLEFT OUTER JOIN data_values %s ON d.id = %s.depth_id AND %s.data_type_id = $%d",
			t.Alias, t.Alias, t.Alias, len(args))
		notNulls = append(notNulls, t.Alias+".value IS NOT NULL")
		columns = append(columns, t.Column())
	}

	var where strings.Builder
	placeholders := make([]string, len(req.DataSetIDs))
	for i, id := range req.DataSetIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	fmt.Fprintf(&where, "\nWHERE ds.id IN (%s)", strings.Join(placeholders, ", "))

	if req.Bounds != nil {
		args = append(args, req.Bounds.MinLat, req.Bounds.MaxLat)
		fmt.Fprintf(&where, "\nAND st_y(s.position) BETWEEN $%d AND $%d", len(args)-1, len(args))
		args = append(args, req.Bounds.MinLon, req.Bounds.MaxLon)
		fmt.Fprintf(&where, "\nAND st_x(s.position) BETWEEN $%d AND $%d", len(args)-1, len(args))
	}
	if req.MinDepth > 0 {
		args = append(args, req.MinDepth)
		fmt.Fprintf(&where, "\nAND d.depth > $%d", len(args))
	}
	if req.MaxDepth > 0 {
		args = append(args, req.MaxDepth)
		fmt.Fprintf(&where, "\nAND d.depth < $%d", len(args))
	}

	// Row-level filter: drop depths where every requested value is
	// absent. Built from the requested types only, by contract.
	fmt.Fprintf(&where, "\nAND (%s)", strings.Join(notNulls, " OR "))

	order := "\nORDER BY ds.id ASC, s.id ASC, c.id ASC, d.id ASC"

	return Query{
		SQL:           sel.String() + joins.String() + where.String() + order,
		Args:          args,
		OutputColumns: columns,
	}, nil
}
