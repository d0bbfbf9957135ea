package anaf

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/efactura"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		CIF:         "RO12345678",
		StaticToken: "test-token",
		Timeout:     5 * time.Second,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	client, err := NewClient(testConfig(baseURL), zap.NewNop())
	require.NoError(t, err)
	return client
}

func buildArchive(t *testing.T, name, content string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestConfig_Validate(t *testing.T) {
	t.Run("accepts static token", func(t *testing.T) {
		cfg := testConfig("https://example.test")
		assert.NoError(t, cfg.Validate())
	})

	t.Run("accepts full oauth credentials", func(t *testing.T) {
		cfg := &Config{
			BaseURL:      "https://example.test",
			TokenURL:     "https://example.test/token",
			CIF:          "RO12345678",
			ClientID:     "id",
			ClientSecret: "secret",
			RefreshToken: "refresh",
		}
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("rejects missing base URL", func(t *testing.T) {
		cfg := testConfig("")
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects missing CIF", func(t *testing.T) {
		cfg := testConfig("https://example.test")
		cfg.CIF = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects incomplete oauth credentials", func(t *testing.T) {
		cfg := &Config{
			BaseURL:  "https://example.test",
			TokenURL: "https://example.test/token",
			CIF:      "RO12345678",
			ClientID: "id",
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestClient_Upload(t *testing.T) {
	document := []byte(`<?xml version="1.0"?><Invoice/>`)

	t.Run("returns the upload index on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/upload", r.URL.Path)
			assert.Equal(t, "UBL", r.URL.Query().Get("standard"))
			assert.Equal(t, "RO12345678", r.URL.Query().Get("cif"))
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			w.Write([]byte(`<header xmlns="mfp:anaf:dgti:spv:respUploadFisier:v1" ExecutionStatus="0" index_incarcare="3828"/>`))
		}))
		defer server.Close()

		result, err := newTestClient(t, server.URL).Upload(context.Background(), document)
		require.NoError(t, err)
		assert.Equal(t, "3828", result.UploadID)
	})

	t.Run("surfaces authority validation errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<header ExecutionStatus="1"><Errors errorMessage="CIF invalid"/><Errors errorMessage="semnatura lipsa"/></header>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Upload(context.Background(), document)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CIF invalid")
		assert.Contains(t, err.Error(), "semnatura lipsa")
	})

	t.Run("fails on HTTP error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Upload(context.Background(), document)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 503")
	})

	t.Run("fails when the response carries no index", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<header ExecutionStatus="0"/>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Upload(context.Background(), document)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no upload index")
	})
}

func TestClient_Status(t *testing.T) {
	cases := []struct {
		name     string
		response string
		verdict  efactura.Verdict
		download string
	}{
		{
			name:     "still processing",
			response: `<header stare="in prelucrare"/>`,
			verdict:  efactura.VerdictInProgress,
		},
		{
			name:     "accepted with download id",
			response: `<header stare="ok" id_descarcare="1234"/>`,
			verdict:  efactura.VerdictOK,
			download: "1234",
		},
		{
			name:     "rejected with download id",
			response: `<header stare="nok" id_descarcare="5678"/>`,
			verdict:  efactura.VerdictNok,
			download: "5678",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stareMesaj", r.URL.Path)
				assert.Equal(t, "3828", r.URL.Query().Get("id_incarcare"))
				w.Write([]byte(tc.response))
			}))
			defer server.Close()

			result, err := newTestClient(t, server.URL).Status(context.Background(), "3828")
			require.NoError(t, err)
			assert.Equal(t, tc.verdict, result.Verdict)
			assert.Equal(t, tc.download, result.DownloadID)
			assert.Equal(t, tc.response, result.Raw)
		})
	}

	t.Run("rejects an unknown state", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<header stare="corrupted"/>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Status(context.Background(), "3828")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "corrupted")
	})

	t.Run("surfaces authority errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<header><Errors errorMessage="id_incarcare invalid"/></header>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Status(context.Background(), "bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id_incarcare invalid")
	})

	t.Run("requires an upload id", func(t *testing.T) {
		_, err := newTestClient(t, "https://example.test").Status(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestClient_Download(t *testing.T) {
	t.Run("returns the archive bytes", func(t *testing.T) {
		archive := buildArchive(t, "4321.xml", "<Invoice/>")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/descarcare", r.URL.Path)
			assert.Equal(t, "1234", r.URL.Query().Get("id"))
			w.Header().Set("Content-Type", "application/zip")
			w.Write(archive)
		}))
		defer server.Close()

		got, err := newTestClient(t, server.URL).Download(context.Background(), "1234")
		require.NoError(t, err)
		assert.Equal(t, archive, got)
	})

	t.Run("rejects a non-archive payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"eroare":"nu exista fisier"}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Download(context.Background(), "1234")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nu exista fisier")
	})

	t.Run("requires a download id", func(t *testing.T) {
		_, err := newTestClient(t, "https://example.test").Download(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestClient_TokenRefresh(t *testing.T) {
	var tokenCalls atomic.Int64

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-abc", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"issued-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))
		w.Write([]byte(`<header stare="in prelucrare"/>`))
	}))
	defer apiServer.Close()

	cfg := &Config{
		BaseURL:      apiServer.URL,
		TokenURL:     tokenServer.URL,
		CIF:          "RO12345678",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-abc",
		Timeout:      5 * time.Second,
	}
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)

	// two calls, one token grant: the second call reuses the cached token
	for i := 0; i < 2; i++ {
		_, err := client.Status(context.Background(), "3828")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestClient_TokenRefreshFailure(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenServer.Close()

	cfg := &Config{
		BaseURL:      "https://example.test",
		TokenURL:     tokenServer.URL,
		CIF:          "RO12345678",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-abc",
		Timeout:      5 * time.Second,
	}
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Status(context.Background(), "3828")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}
