package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/infrastructure/config"
)

func testConfig(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Enabled:           true,
		Endpoint:          endpoint,
		Region:            "us-east-1",
		Bucket:            "invoices",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		UsePathStyle:      true,
		PresignExpiration: 10 * time.Minute,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing bucket", func(t *testing.T) {
		cfg := testConfig("http://localhost:9000")
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half a key pair", func(t *testing.T) {
		cfg := testConfig("http://localhost:9000")
		cfg.SecretKey = ""
		_, err := NewS3ObjectStorage(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set together")
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := testConfig("localhost:9000")
		cfg.PresignExpiration = 0
		s, err := NewS3ObjectStorage(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, "invoices", s.Bucket())
		assert.Equal(t, 15*time.Minute, s.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"", false, ""},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal", true, "https://minio.internal"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.endpoint, tt.ssl)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := normalizeEndpoint("http://", false)
	assert.Error(t, err)
}

func TestS3ObjectStorage_DownloadURL(t *testing.T) {
	s, err := NewS3ObjectStorage(context.Background(), testConfig("http://localhost:9000"))
	require.NoError(t, err)

	raw, expiresAt, err := s.DownloadURL(context.Background(), "ACME/2024/FE-FAC-A-00001-00000001.pdf")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/invoices/ACME/2024/FE-FAC-A-00001-00000001.pdf", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	_, _, err = s.DownloadURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

// fakeS3 accepts path-style PUT and HEAD requests
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ObjectStorage_PutAndExists(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s, err := NewS3ObjectStorage(ctx, testConfig(srv.URL))
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "ACME/2024/doc.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Put(ctx, "ACME/2024/doc.pdf", []byte("%PDF-1.4"), "application/pdf"))

	fake.mu.Lock()
	assert.Equal(t, "application/pdf", fake.types["/invoices/ACME/2024/doc.pdf"])
	fake.mu.Unlock()

	exists, err = s.Exists(ctx, "ACME/2024/doc.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.ErrorIs(t, s.Put(ctx, "", nil, "application/pdf"), ErrEmptyKey)
}
