// Package postgres reads profile data from a PostgreSQL/PostGIS
// database through the pgx stdlib driver. Every failure is wrapped in
// a domain.StorageError; no retries happen here.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver

	"github.com/jonasfh/xover/internal/assemble"
	"github.com/jonasfh/xover/internal/domain"
	"github.com/jonasfh/xover/internal/query"
	"github.com/jonasfh/xover/internal/spatial"
)

// Store is the storage collaborator for the aggregation core. It only
// reads; the schema is owned by the external ingest process.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open database", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "ping database", Err: err}
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an existing database handle; tests hand in a mock.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.StorageError{Op: "ping database", Err: err}
	}
	return nil
}

// DataTypes loads the measurement type reference set.
func (s *Store) DataTypes(ctx context.Context) ([]domain.DataType, error) {
	const q = `SELECT id, label, COALESCE(unit, '') FROM data_types ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &domain.StorageError{Op: "query data types", Err: err}
	}
	defer rows.Close()

	var types []domain.DataType
	for rows.Next() {
		var t domain.DataType
		if err := rows.Scan(&t.ID, &t.Label, &t.Unit); err != nil {
			return nil, &domain.StorageError{Op: "scan data type", Err: err}
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate data types", Err: err}
	}
	return types, nil
}

// StreamProfileRows executes a compiled profile query and feeds each
// row to fn in result order. An error from fn stops the stream and is
// returned as-is; store-side failures come back wrapped.
func (s *Store) StreamProfileRows(ctx context.Context, q query.Query, fn func(assemble.Row) error) error {
	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return &domain.StorageError{Op: "query profile rows", Err: err}
	}
	defer rows.Close()

	valueCount := len(q.OutputColumns) - assemble.FixedColumnCount
	if valueCount < 0 {
		valueCount = 0
	}

	for rows.Next() {
		r, err := scanProfileRow(rows, valueCount)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &domain.StorageError{Op: "iterate profile rows", Err: err}
	}
	return nil
}

func scanProfileRow(rows *sql.Rows, valueCount int) (assemble.Row, error) {
	var r assemble.Row
	nullable := make([]sql.NullFloat64, valueCount)

	dest := []any{
		&r.DataSetID, &r.Expocode,
		&r.StationID, &r.StationNumber, &r.Latitude, &r.Longitude,
		&r.CastID, &r.CastNo,
		&r.DepthID, &r.Depth, &r.DateAndTime,
	}
	for i := range nullable {
		dest = append(dest, &nullable[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return assemble.Row{}, &domain.StorageError{Op: "scan profile row", Err: err}
	}

	r.Values = make([]*float64, valueCount)
	for i, v := range nullable {
		if v.Valid {
			value := v.Float64
			r.Values[i] = &value
		}
	}
	return r, nil
}

// StationPositions returns one data set's station positions, limited
// to stations sampling deeper than minDepth when minDepth > 0.
func (s *Store) StationPositions(ctx context.Context, dataSetID int64, minDepth float64) ([]spatial.StationPosition, error) {
	q := `SELECT s.data_set_id, s.id, st_y(s.position), st_x(s.position)
FROM stations s
WHERE s.data_set_id = $1
ORDER BY s.id`
	args := []any{dataSetID}

	if minDepth > 0 {
		q = `SELECT DISTINCT s.data_set_id, s.id, st_y(s.position), st_x(s.position)
FROM stations s
INNER JOIN casts c ON s.id = c.station_id
INNER JOIN depths d ON c.id = d.cast_id
WHERE s.data_set_id = $1 AND d.depth > $2
ORDER BY s.id`
		args = append(args, minDepth)
	}

	return s.queryPositions(ctx, "query station positions", q, args...)
}

// StationPositionsExcluding returns the positions of every station
// outside the given data set.
func (s *Store) StationPositionsExcluding(ctx context.Context, dataSetID int64) ([]spatial.StationPosition, error) {
	const q = `SELECT s.data_set_id, s.id, st_y(s.position), st_x(s.position)
FROM stations s
WHERE s.data_set_id <> $1
ORDER BY s.data_set_id, s.id`

	return s.queryPositions(ctx, "query candidate station positions", q, dataSetID)
}

func (s *Store) queryPositions(ctx context.Context, op, q string, args ...any) ([]spatial.StationPosition, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var positions []spatial.StationPosition
	for rows.Next() {
		var p spatial.StationPosition
		if err := rows.Scan(&p.DataSetID, &p.StationID, &p.Point.Lat, &p.Point.Lon); err != nil {
			return nil, &domain.StorageError{Op: op, Err: err}
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	return positions, nil
}
