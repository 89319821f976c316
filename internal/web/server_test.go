package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/JonMunkholm/tabmap/internal/config"
	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type widget struct {
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

func TestMain(m *testing.M) {
	core.Register(core.Bind[widget]("widgets", "Widgets").
		Group("Inventory").
		Column("SKU", "SKU", 1, func(w *widget) any { return &w.SKU }).
		Column("Name", "Name", 2, func(w *widget) any { return &w.Name }).
		Column("Price", "Price", 3, func(w *widget) any { return &w.Price }).
		Column("Qty", "Quantity", 0, func(w *widget) any { return &w.Qty }))
	os.Exit(m.Run())
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Defaults()
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	s := NewServer(core.NewService(cfg), cfg)
	t.Cleanup(func() { s.Shutdown(t.Context()) })
	return s
}

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(core.DefaultSheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func readWorkbook(t *testing.T, rec *httptest.ResponseRecorder) [][]string {
	t.Helper()

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(core.DefaultSheet)
	require.NoError(t, err)
	return rows
}

// ----------------------------------------------------------------------------
// Listing and health
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestListTypes(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/types", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TypesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Types, 1)
	assert.Equal(t, "widgets", resp.Types[0].Key)
	assert.Equal(t, []string{"SKU", "Name", "Price"}, resp.Types[0].ExportHeaders)
	assert.Equal(t, []string{"Inventory"}, resp.Groups)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/types?group=none", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"types":[]`)
}

// ----------------------------------------------------------------------------
// Import
// ----------------------------------------------------------------------------

func TestImport(t *testing.T) {
	s := newTestServer(t, nil)
	data := workbookBytes(t, [][]any{
		{"Name", "SKU", "Price", "Quantity"},
		{"Bolt", "B-1", 0.25, 100},
		{nil, nil, nil, nil, "notes"},
		{"Nut", "N-1", "cheap", "x"},
	})

	rec := serve(s, uploadRequest(t, "/api/import/widgets", "stock.xlsx", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID        string   `json:"id"`
		Type      string   `json:"type"`
		Records   []widget `json:"records"`
		BlankRows []int    `json:"blankRows"`
		RowsRead  int      `json:"rowsRead"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "widgets", resp.Type)
	assert.Equal(t, []widget{
		{SKU: "B-1", Name: "Bolt", Price: 0.25, Qty: 100},
		{SKU: "N-1", Name: "Nut"},
	}, resp.Records)
	assert.Equal(t, []int{2}, resp.BlankRows)
	assert.Equal(t, 3, resp.RowsRead)

	hist := serve(s, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	require.Equal(t, http.StatusOK, hist.Code)
	var history []core.ImportSummary
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, resp.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Records)
}

func TestImport_Errors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Import.MaxFileSize = 1 << 10
	})
	valid := workbookBytes(t, [][]any{{"SKU"}, {"A"}})

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		wantCode string
	}{
		{
			name:     "unknown type",
			req:      uploadRequest(t, "/api/import/gadgets", "a.xlsx", valid),
			status:   http.StatusNotFound,
			wantCode: "TYPE001",
		},
		{
			name:     "unsupported extension",
			req:      uploadRequest(t, "/api/import/widgets", "data.csv", []byte("a,b\n1,2\n")),
			status:   http.StatusBadRequest,
			wantCode: "FILE002",
		},
		{
			name:     "not a workbook",
			req:      uploadRequest(t, "/api/import/widgets", "broken.xlsx", []byte("garbage")),
			status:   http.StatusUnprocessableEntity,
			wantCode: "FILE003",
		},
		{
			name:     "too large",
			req:      uploadRequest(t, "/api/import/widgets", "big.xlsx", bytes.Repeat([]byte("x"), 4<<10)),
			status:   http.StatusRequestEntityTooLarge,
			wantCode: "FILE001",
		},
		{
			name:     "no file part",
			req:      httptest.NewRequest(http.MethodPost, "/api/import/widgets", strings.NewReader("plain")),
			status:   http.StatusBadRequest,
			wantCode: "FILE004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestInspectAndDetect(t *testing.T) {
	s := newTestServer(t, nil)
	data := workbookBytes(t, [][]any{
		{"SKU", "Name", "Price", "Colour"},
		{"B-1", "Bolt", 1},
	})

	rec := serve(s, uploadRequest(t, "/api/inspect/widgets", "a.xlsx", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep core.HeaderReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, []string{"SKU", "Name", "Price"}, rep.Matched)
	assert.Equal(t, []string{"Quantity"}, rep.Missing)
	assert.Equal(t, []string{"Colour"}, rep.Unknown)
	assert.Equal(t, 1, rep.DataRows)

	rec = serve(s, uploadRequest(t, "/api/detect", "a.xlsx", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var det DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &det))
	require.Len(t, det.Matches, 1)
	assert.Equal(t, "widgets", det.Matches[0].Type.Key)
	assert.InDelta(t, 0.75, det.Matches[0].Score, 1e-9)
}

// ----------------------------------------------------------------------------
// Export
// ----------------------------------------------------------------------------

func TestExport(t *testing.T) {
	s := newTestServer(t, nil)
	body := `[{"sku":"B-1","name":"Bolt","price":0.25,"qty":7}]`

	req := httptest.NewRequest(http.MethodPost, "/api/export/widgets?filename=../stock", strings.NewReader(body))
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, core.ContentTypeOctetStream, rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment;filename=stock.xlsx", rec.Header().Get("Content-Disposition"))

	rows := readWorkbook(t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"SKU", "Name", "Price"}, rows[0])
	assert.Equal(t, []string{"B-1", "Bolt", "0.25"}, rows[1])
}

func TestExport_Errors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Export.MaxBodySize = 64
	})

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unknown type", "/api/export/gadgets", `[]`, http.StatusNotFound},
		{"bad json", "/api/export/widgets", `{"sku":`, http.StatusBadRequest},
		{"too large", "/api/export/widgets", "[" + strings.Repeat(`{"sku":"x"},`, 20) + "{}]", http.StatusRequestEntityTooLarge},
		{"raw bad json", "/api/export", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeError(t, rec).Code)
		})
	}
}

func TestExportRaw(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{
		"headers": ["Region", "Total"],
		"rows": [{"key": "first", "values": ["North", "10"]}],
		"keyed": {"b": ["South", "5"], "a": ["East", "7"]}
	}`

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment;filename=export.xlsx", rec.Header().Get("Content-Disposition"))

	rows := readWorkbook(t, rec)
	assert.Equal(t, [][]string{
		{"Region", "Total"},
		{"North", "10"},
		{"East", "7"},
		{"South", "5"},
	}, rows)
}

func TestDownloadTemplate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/template/widgets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment;filename=widgets_template.xlsx", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, [][]string{{"SKU", "Name", "Price"}}, readWorkbook(t, rec))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/template/gadgets", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"report", "report.xlsx"},
		{"report.XLSX", "report.XLSX"},
		{"../../etc/passwd", "passwd.xlsx"},
		{`C:\tmp\out.xlsx`, "out.xlsx"},
		{"  spaced.xlsx  ", "spaced.xlsx"},
	}

	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Auth and rate limiting
// ----------------------------------------------------------------------------

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/types", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "REQ002", decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/types", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/types", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	// Health stays open for liveness checks.
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	for range 2 {
		assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}
