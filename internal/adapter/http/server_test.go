package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasfh/xover/internal/domain"
	"github.com/jonasfh/xover/internal/geo"
	"github.com/jonasfh/xover/internal/query"
	"github.com/jonasfh/xover/internal/service"
)

type mockCore struct {
	data    domain.ProfileData
	dataErr error
	dataReq service.ProfileRequest

	types    []domain.DataType
	typesErr error

	extent    geo.BoundingBox
	extentErr error

	center    geo.Point
	centerErr error

	crossovers []int64
	crossErr   error
	crossRange float64
	crossBBox  bool

	report    service.CrossoverReport
	reportErr error
}

func (m *mockCore) DataSetData(ctx context.Context, req service.ProfileRequest) (domain.ProfileData, error) {
	m.dataReq = req
	return m.data, m.dataErr
}

func (m *mockCore) DataTypes(ctx context.Context) ([]domain.DataType, error) {
	return m.types, m.typesErr
}

func (m *mockCore) Extent(ctx context.Context, dataSetID int64, minDepth float64) (geo.BoundingBox, error) {
	return m.extent, m.extentErr
}

func (m *mockCore) Centroid(ctx context.Context, dataSetID int64) (geo.Point, error) {
	return m.center, m.centerErr
}

func (m *mockCore) Crossovers(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool) ([]int64, error) {
	m.crossRange = rangeMeters
	m.crossBBox = useBBox
	return m.crossovers, m.crossErr
}

func (m *mockCore) Crossover(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool, extraTypes []string) (service.CrossoverReport, error) {
	return m.report, m.reportErr
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func newTestServer(core *mockCore, pinger *mockPinger) *Server {
	if pinger == nil {
		pinger = &mockPinger{}
	}
	return NewServer(":0", core, pinger, 30*time.Second, nil, nil)
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&mockCore{}, nil)

	rec := doGet(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("store up", func(t *testing.T) {
		srv := newTestServer(&mockCore{}, &mockPinger{})
		rec := doGet(t, srv, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store down", func(t *testing.T) {
		srv := newTestServer(&mockCore{}, &mockPinger{err: errors.New("refused")})
		rec := doGet(t, srv, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleData(t *testing.T) {
	core := &mockCore{
		data: domain.ProfileData{
			DataColumns: []string{"depth_id", "depth", "date_and_time", "temperature_value"},
			DataSets:    []domain.DataSetNode{},
		},
	}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/data?ids=1,2&types=temperature&min_depth=1000&bounds=50,70,-10,15")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, []int64{1, 2}, core.dataReq.DataSetIDs)
	assert.Equal(t, []string{"temperature"}, core.dataReq.Types)
	assert.Equal(t, 1000.0, core.dataReq.MinDepth)
	require.NotNil(t, core.dataReq.Bounds)
	assert.Equal(t, query.Bounds{MinLat: 50, MaxLat: 70, MinLon: -10, MaxLon: 15}, *core.dataReq.Bounds)

	var body domain.ProfileData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, core.data.DataColumns, body.DataColumns)
}

func TestHandleDataBadParams(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"bad ids", "/api/v1/data?ids=one"},
		{"bad min depth", "/api/v1/data?ids=1&min_depth=deep"},
		{"bad bounds arity", "/api/v1/data?ids=1&bounds=1,2,3"},
		{"bad bounds value", "/api/v1/data?ids=1&bounds=1,2,3,x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockCore{}, nil)
			rec := doGet(t, srv, tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown type", &domain.UnknownMeasurementTypeError{Name: "x"}, http.StatusBadRequest},
		{"duplicate alias", &domain.DuplicateAliasError{Alias: "a", First: "a", Second: "a!"}, http.StatusBadRequest},
		{"empty type set", domain.ErrEmptyTypeSet, http.StatusBadRequest},
		{"no data sets", query.ErrNoDataSets, http.StatusBadRequest},
		{"empty data set", &domain.EmptyDataSetError{DataSetID: 9}, http.StatusNotFound},
		{"storage failure", &domain.StorageError{Op: "query", Err: errors.New("down")}, http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockCore{dataErr: tt.err}, nil)
			rec := doGet(t, srv, "/api/v1/data?ids=1")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStorageErrorDetailHidden(t *testing.T) {
	srv := newTestServer(&mockCore{
		dataErr: &domain.StorageError{Op: "query profile rows", Err: errors.New("password=hunter2")},
	}, nil)

	rec := doGet(t, srv, "/api/v1/data?ids=1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestHandleDataTypes(t *testing.T) {
	core := &mockCore{types: []domain.DataType{{ID: 1, Label: "temperature", Unit: "C"}}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datatypes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "temperature")
}

func TestHandleExtent(t *testing.T) {
	core := &mockCore{extent: geo.BoundingBox{MinLat: 50, MaxLat: 70, MinLon: -10, MaxLon: 15}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datasets/4/extent?min_depth=1000")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DataSetID int64           `json:"data_set_id"`
		Extent    geo.BoundingBox `json:"extent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(4), body.DataSetID)
	assert.Equal(t, core.extent, body.Extent)
}

func TestHandleExtentBadID(t *testing.T) {
	srv := newTestServer(&mockCore{}, nil)
	rec := doGet(t, srv, "/api/v1/datasets/abc/extent")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCentroid(t *testing.T) {
	core := &mockCore{center: geo.Point{Lat: 60, Lon: 2.5}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datasets/4/centroid")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data_set_id":4`)
}

func TestHandleCrossovers(t *testing.T) {
	core := &mockCore{crossovers: []int64{2, 7}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datasets/1/crossovers?range=50000&exact=true")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 50_000.0, core.crossRange)
	assert.False(t, core.crossBBox, "exact=true disables bbox prefiltering")
	assert.Contains(t, rec.Body.String(), "[2,7]")
}

func TestHandleCrossoversDefaultsToBBox(t *testing.T) {
	core := &mockCore{crossovers: []int64{}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datasets/1/crossovers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, core.crossBBox)
	assert.Equal(t, 0.0, core.crossRange)
}

func TestHandleCrossoverReport(t *testing.T) {
	core := &mockCore{report: service.CrossoverReport{
		DataSetID:    1,
		Center:       geo.Point{Lat: 60, Lon: -5},
		CrossoverIDs: []int64{3},
	}}
	srv := newTestServer(core, nil)

	rec := doGet(t, srv, "/api/v1/datasets/1/crossover")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"crossover_data_set_ids":[3]`)
}
