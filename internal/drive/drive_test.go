package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

type fakeFiles struct {
	folders map[string]string
	files   map[string][]*File
	content map[string]string
}

func (f *fakeFiles) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}
	return f.files[folderID], nil
}

func (f *fakeFiles) FindFolderByPath(ctx context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", fmt.Errorf("folder not found: %s", path)
	}
	return id, nil
}

func (f *fakeFiles) Fetch(ctx context.Context, fileID string, w io.Writer) (*File, error) {
	for _, list := range f.files {
		for _, file := range list {
			if file.ID == fileID {
				_, err := io.WriteString(w, f.content[fileID])
				return file, err
			}
		}
	}
	return nil, errors.New("file not found")
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		folders: map[string]string{"stock/daily": "f1"},
		files: map[string][]*File{
			"root": {
				{ID: "t1", Name: "Thresholds", MimeType: sheetMimeType},
			},
			"f1": {
				{ID: "s1", Name: "20251201_north.csv", MimeType: "text/csv"},
				{ID: "s2", Name: "20251201_south", MimeType: sheetMimeType},
				{ID: "s3", Name: "notes.pdf", MimeType: "application/pdf"},
			},
		},
		content: map[string]string{
			"t1": "Unit,Location,Capacity,Coffee,Coffee\n1,Loc A,2,2,5\n",
			"s1": "Location,Product,Qty\nLoc A,Coffee,1\n",
			"s2": "Location,Product,Qty\nLoc B,Soap,2\n",
		},
	}
}

type fakeImporter struct {
	err error
}

func (f *fakeImporter) ImportThresholdsFromDrive(ctx context.Context, fileID string) (*ImportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ImportResult{FileID: fileID, Name: "Thresholds", Records: 2, Products: 1}, nil
}

func newRouter(importer ThresholdImporter) *mux.Router {
	r := mux.NewRouter()
	NewHandler(newFakeFiles(), importer).RegisterRoutes(r)
	return r
}

func TestReadTableExportsSheetAsCSV(t *testing.T) {
	tbl, meta, err := ReadTable(context.Background(), newFakeFiles(), "t1")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if meta.LocalName() != "Thresholds.csv" {
		t.Fatalf("local name = %s", meta.LocalName())
	}
	want := []string{"Unit", "Location", "Capacity", "Coffee", "Coffee.1"}
	if strings.Join(tbl.Header, "|") != strings.Join(want, "|") {
		t.Fatalf("header = %v", tbl.Header)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("rows = %v", tbl.Rows)
	}

	if _, _, err := ReadTable(context.Background(), newFakeFiles(), "missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDownloaderDownloadFolder(t *testing.T) {
	dir := t.TempDir()
	d := NewDownloader(newFakeFiles())

	paths, err := d.DownloadFolder(context.Background(), DownloadOptions{FolderPath: "stock/daily", DownloadDir: dir})
	if err != nil {
		t.Fatalf("DownloadFolder: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if filepath.Base(paths[1]) != "20251201_south.csv" {
		t.Fatalf("sheet not exported as csv: %v", paths)
	}
	data, err := os.ReadFile(paths[0])
	if err != nil || !strings.Contains(string(data), "Coffee") {
		t.Fatalf("content = %q, %v", data, err)
	}

	if _, err := d.DownloadFolder(context.Background(), DownloadOptions{}); err == nil {
		t.Fatalf("expected error without download dir")
	}
}

func TestHandlerListFiles(t *testing.T) {
	router := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=stock/daily", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var files []File
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %+v", files)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?folderId=empty", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty folder = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandlerDownloadFile(t *testing.T) {
	router := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download?fileId=s2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "20251201_south.csv") {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Loc B") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fileId status = %d", rec.Code)
	}
}

func TestHandlerImportThresholds(t *testing.T) {
	tests := []struct {
		name     string
		importer ThresholdImporter
		target   string
		want     int
	}{
		{"missing file id", &fakeImporter{}, "/api/drive/thresholds/import", http.StatusBadRequest},
		{"not configured", nil, "/api/drive/thresholds/import?fileId=t1", http.StatusServiceUnavailable},
		{"schema error", &fakeImporter{err: fmt.Errorf("load: %w", &domain.SchemaError{Source: "thresholds", Reason: "odd columns"})}, "/api/drive/thresholds/import?fileId=t1", http.StatusUnprocessableEntity},
		{"drive failure", &fakeImporter{err: errors.New("quota")}, "/api/drive/thresholds/import?fileId=t1", http.StatusInternalServerError},
		{"success", &fakeImporter{}, "/api/drive/thresholds/import?fileId=t1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(tt.importer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`O'Brien\x`); got != `O\'Brien\\x` {
		t.Fatalf("escapeQuery = %q", got)
	}
}
