package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/pkg/lifecycle"
	"github.com/cleverhoods/sagecompass-sub001/pkg/routes"
	"github.com/cleverhoods/sagecompass-sub001/pkg/storage"
)

type memoryStore struct {
	blobs      map[string][]byte
	listPrefix string
}

func (m *memoryStore) Start(*lifecycle.Coordinator) error { return nil }

func (m *memoryStore) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.blobs[key] = data
	return nil
}

func (m *memoryStore) Download(_ context.Context, key string) (*storage.BlobResult, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobResult{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentType:   "application/json",
		ContentLength: int64(len(data)),
	}, nil
}

func (m *memoryStore) Find(_ context.Context, key string) (*storage.BlobMeta, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobMeta{Key: key, ContentType: "application/json", ContentLength: int64(len(data))}, nil
}

func (m *memoryStore) List(_ context.Context, prefix, _ string, _ int32) (*storage.BlobList, error) {
	m.listPrefix = prefix
	list := &storage.BlobList{Blobs: []storage.BlobMeta{}}
	for key, data := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			list.Blobs = append(list.Blobs, storage.BlobMeta{Key: key, ContentLength: int64(len(data))})
		}
	}
	return list, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func reportsMux(store storage.System) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, newReportsHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)), 50).routes())
	return mux
}

func TestReportsHandler(t *testing.T) {
	id := uuid.New()
	report := []byte(`{"run":{"id":"` + id.String() + `"}}`)
	store := &memoryStore{blobs: map[string][]byte{
		"runs/" + id.String() + "/report.json": report,
		"other/blob.txt":                       []byte("x"),
	}}
	mux := reportsMux(store)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d", rec.Code)
		}
		var list storage.BlobList
		if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if store.listPrefix != "runs/" || len(list.Blobs) != 1 {
			t.Errorf("list: prefix %q, %d blobs", store.listPrefix, len(list.Blobs))
		}
	})

	t.Run("bad max results", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?max_results=-1", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", rec.Code)
		}
	})

	t.Run("find", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+id.String(), nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d", rec.Code)
		}
	})

	t.Run("find missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+uuid.NewString(), nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/nope/download", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", rec.Code)
		}
	})

	t.Run("download", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+id.String()+"/download", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d", rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), report) {
			t.Errorf("body: got %s", rec.Body.String())
		}
		if !strings.Contains(rec.Header().Get("Content-Disposition"), id.String()+".json") {
			t.Errorf("disposition: got %s", rec.Header().Get("Content-Disposition"))
		}
	})
}
