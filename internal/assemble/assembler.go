// Package assemble reassembles the flat, sorted rows produced by the
// compiled profile query into the nested data set → station → cast →
// depth-sample structure callers receive.
package assemble

import (
	"fmt"
	"time"

	"github.com/jonasfh/xover/internal/domain"
)

// FixedColumnCount is the number of per-depth columns preceding the
// pivoted measurement columns in a query's output column list:
// depth_id, depth, date_and_time.
const FixedColumnCount = 3

// Row is one flat result row in the compiled query's column layout.
// Values holds the pivoted measurement values in output column order,
// nil where the store returned NULL.
type Row struct {
	DataSetID     int64
	Expocode      string
	StationID     int64
	StationNumber int64
	Latitude      float64
	Longitude     float64
	CastID        int64
	CastNo        int64
	DepthID       int64
	Depth         float64
	DateAndTime   time.Time
	Values        []*float64
}

// groupKey identifies the hierarchy position of a row. Rows arrive
// ordered by it; a change at any level closes the levels below.
type groupKey struct {
	dataSetID int64
	stationID int64
	castID    int64
}

func (k groupKey) less(o groupKey) bool {
	if k.dataSetID != o.dataSetID {
		return k.dataSetID < o.dataSetID
	}
	if k.stationID != o.stationID {
		return k.stationID < o.stationID
	}
	return k.castID < o.castID
}

// Assembler folds an ordered row stream into nested output in a single
// forward pass. Feed rows with Push, then call Finish exactly once.
//
// The zero value is not usable; construct with New. An Assembler is
// request-scoped and not safe for concurrent use.
type Assembler struct {
	columns   []string
	valueCols []string

	open    bool
	current groupKey
	dataSet domain.DataSetNode
	station domain.StationNode
	cast    domain.CastNode

	done []domain.DataSetNode
	rows int
}

// New creates an Assembler for a stream matching the given output
// columns (the compiler's OutputColumns: the fixed depth columns
// followed by one pivoted column per measurement type).
func New(outputColumns []string) *Assembler {
	valueCols := outputColumns
	if len(valueCols) >= FixedColumnCount {
		valueCols = valueCols[FixedColumnCount:]
	}
	return &Assembler{
		columns:   outputColumns,
		valueCols: valueCols,
		done:      []domain.DataSetNode{},
	}
}

// Rows returns the number of rows pushed so far.
func (a *Assembler) Rows() int {
	return a.rows
}

// Push folds one row into the in-progress hierarchy. Rows must arrive
// in ascending (data set, station, cast, depth) order; a row sorting
// before the current group is rejected, since silently accepting it
// would scramble the output.
func (a *Assembler) Push(row Row) error {
	if len(row.Values) != len(a.valueCols) {
		return fmt.Errorf("row has %d measurement values, query selected %d", len(row.Values), len(a.valueCols))
	}
	key := groupKey{dataSetID: row.DataSetID, stationID: row.StationID, castID: row.CastID}
	if a.open && key.less(a.current) {
		return fmt.Errorf("row for data set %d station %d cast %d arrived out of order",
			row.DataSetID, row.StationID, row.CastID)
	}

	switch {
	case !a.open || key.dataSetID != a.current.dataSetID:
		if a.open {
			a.closeDataSet()
		}
		a.openDataSet(row)
	case key.stationID != a.current.stationID:
		a.closeStation()
		a.openStation(row)
	case key.castID != a.current.castID:
		a.closeCast()
		a.openCast(row)
	}
	a.current = key
	a.open = true

	a.cast.DepthIDs = append(a.cast.DepthIDs, row.DepthID)
	a.cast.Depths = append(a.cast.Depths, row.Depth)
	a.cast.Times = append(a.cast.Times, row.DateAndTime)
	for i, col := range a.valueCols {
		a.cast.Values[col] = append(a.cast.Values[col], row.Values[i])
	}
	a.rows++
	return nil
}

// Finish closes any in-progress nodes and returns the assembled
// output. DataColumns always reflects the compiled query's columns,
// even for an empty stream.
func (a *Assembler) Finish() domain.ProfileData {
	if a.open {
		a.closeDataSet()
		a.open = false
	}
	return domain.ProfileData{
		DataColumns: a.columns,
		DataSets:    a.done,
	}
}

func (a *Assembler) openDataSet(row Row) {
	a.dataSet = domain.DataSetNode{
		DataSetID: row.DataSetID,
		Expocode:  row.Expocode,
		Stations:  []domain.StationNode{},
	}
	a.openStation(row)
}

func (a *Assembler) openStation(row Row) {
	a.station = domain.StationNode{
		StationID:     row.StationID,
		StationNumber: row.StationNumber,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		Casts:         []domain.CastNode{},
	}
	a.openCast(row)
}

func (a *Assembler) openCast(row Row) {
	a.cast = domain.NewCastNode(row.CastID, row.CastNo, a.valueCols)
}

func (a *Assembler) closeCast() {
	a.station.Casts = append(a.station.Casts, a.cast)
}

func (a *Assembler) closeStation() {
	a.closeCast()
	a.dataSet.Stations = append(a.dataSet.Stations, a.station)
}

func (a *Assembler) closeDataSet() {
	a.closeStation()
	a.done = append(a.done, a.dataSet)
}
