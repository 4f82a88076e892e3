package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/replenish/backend-go/internal/api/middleware"
	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/service"
)

const (
	thresholdsCSV = "Unit,Location,Capacity,Coffee,Coffee.1,Soap,Soap.1\n" +
		"1,Loc A,2,2,5,0,0\n" +
		"2,Loc B,4,1,1,3,6\n"
	stockCSV = "Location,Product,Quantity\nLoc A,Coffee,1\nLoc B,Soap,2\n"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type emptyDrive struct{}

func (emptyDrive) ListFiles(ctx context.Context, folderID string) ([]*drive.File, error) {
	return nil, nil
}

func (emptyDrive) FindFolderByPath(ctx context.Context, path string) (string, error) {
	return "root", nil
}

func (emptyDrive) Fetch(ctx context.Context, fileID string, w io.Writer) (*drive.File, error) {
	return nil, &domain.NotFoundError{Source: "drive", Path: fileID}
}

type fixture struct {
	router      *gin.Engine
	snapshotDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	thresholds := filepath.Join(dir, "thresholds.csv")
	if err := os.WriteFile(thresholds, []byte(thresholdsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	snapshots := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snapshots, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapshots, "today.csv"), []byte(stockCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := service.NewReplenishmentService(service.FileSource{Path: thresholds}, nil, nil, service.Options{SnapshotDir: snapshots})
	router := NewRouter(&Services{
		Replenishment: svc,
		Drive:         drive.NewHandler(emptyDrive{}, svc),
	}, nil)
	return fixture{router: router, snapshotDir: snapshots}
}

func (f fixture) do(t *testing.T, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f fixture) reload(t *testing.T) {
	t.Helper()
	if rec := f.do(t, http.MethodPost, "/api/v1/thresholds/reload", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d body=%s", rec.Code, rec.Body)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestThresholdRoutes(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/api/v1/thresholds", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before reload status = %d", rec.Code)
	}
	f.reload(t)

	rec := f.do(t, http.MethodGet, "/api/v1/thresholds", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Info       service.ThresholdsInfo            `json:"info"`
		Thresholds []domain.LocationProductThreshold `json:"thresholds"`
	}](t, rec)
	if body.Info.Records != 4 || len(body.Thresholds) != 4 {
		t.Fatalf("body = %+v", body)
	}
}

func TestReconcileRoutes(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/api/v1/reports/latest", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("latest before reconcile status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/reconcile", "text/plain", strings.NewReader(stockCSV)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("reconcile before reload status = %d", rec.Code)
	}
	f.reload(t)

	t.Run("raw text", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/reconcile", "text/plain", strings.NewReader(stockCSV))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
		}
		report := decode[domain.ReplenishmentReport](t, rec)
		if len(report.Detail) != 4 || len(report.Actionable) != 2 {
			t.Fatalf("report = %+v", report)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "stock.csv")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, stockCSV)
		mw.Close()

		rec := f.do(t, http.MethodPost, "/api/v1/reconcile", mw.FormDataContentType(), &buf)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
		}
		if report := decode[domain.ReplenishmentReport](t, rec); report.SnapshotName != "stock.csv" {
			t.Fatalf("snapshot = %q", report.SnapshotName)
		}
	})

	t.Run("multipart without file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("other", "x")
		mw.Close()
		rec := f.do(t, http.MethodPost, "/api/v1/reconcile", mw.FormDataContentType(), &buf)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	cases := []struct {
		name string
		ct   string
		body string
		want int
	}{
		{"path", "application/json", `{"path":"today.csv"}`, http.StatusOK},
		{"missing path", "application/json", `{"path":"nope.csv"}`, http.StatusNotFound},
		{"traversal", "application/json", `{"path":"../thresholds.csv"}`, http.StatusBadRequest},
		{"bad json", "application/json", `{"path":`, http.StatusBadRequest},
		{"empty body", "text/plain", "", http.StatusBadRequest},
		{"unknown columns", "text/plain", "Foo,Bar\n1,2\n", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/reconcile", tc.ct, strings.NewReader(tc.body))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d, body=%s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestLatestReportRoutes(t *testing.T) {
	f := newFixture(t)
	f.reload(t)
	if rec := f.do(t, http.MethodPost, "/api/v1/reconcile", "text/plain", strings.NewReader(stockCSV)); rec.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/reports/latest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/reports/latest/stock_vs_min?top=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock_vs_min status = %d", rec.Code)
	}
	rows := decode[[]domain.StockVsMinRow](t, rec)
	// Coffee holds 1 unit overall, Soap 2.
	if len(rows) != 1 || rows[0].Product != "Coffee" || !rows[0].BelowMin {
		t.Fatalf("rows = %+v", rows)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/reports/latest/stock_vs_min?location=Nowhere", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("unknown location = %d %s", rec.Code, rec.Body)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/reports/latest/stock_vs_min?top=x", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad top status = %d", rec.Code)
	}
}

func TestDriveRoutesMounted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/drive/files?folderId=root", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("drive list status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := f.do(t, http.MethodPost, "/api/drive/thresholds/import", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("import without fileId status = %d", rec.Code)
	}
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{" http://a.test , http://b.test", ""})
	if all || len(origins) != 2 || origins[1] != "http://b.test" {
		t.Fatalf("origins = %v all=%v", origins, all)
	}
	if _, all := normalizeAllowedOrigins([]string{"*"}); !all {
		t.Fatal("expected wildcard")
	}
}
