package art

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songsmith/internal/config"
)

type imageServer struct {
	requests []map[string]any
	payload  string
	status   int
}

func (s *imageServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.requests = append(s.requests, body)

		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error": {"message": "content policy violation"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": s.payload}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, srv *httptest.Server, dir string) *Generator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = srv.URL + "/v1"
	g, err := NewGenerator(cfg.Art, cfg.LLM, dir)
	require.NoError(t, err)
	return g
}

func TestPrompt(t *testing.T) {
	assert.Equal(t,
		"Album cover for song 'Rain' with theme a song about rain. Do not include any text, lettering, or typography on the image.",
		Prompt("Rain", "a song about rain"))
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.OpenRouterAPIKey = "or-key"

	_, err := NewGenerator(cfg.Art, cfg.LLM, t.TempDir())

	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestGenerate_WritesCover(t *testing.T) {
	image := []byte("\x89PNG fake image")
	server := &imageServer{payload: base64.StdEncoding.EncodeToString(image)}
	srv := server.start(t)
	dir := filepath.Join(t.TempDir(), "songs")

	path, err := newTestGenerator(t, srv, dir).Generate(context.Background(), "Rain On Me", "storms")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Rain_On_Me_cover.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, image, data)

	require.Len(t, server.requests, 1)
	assert.Equal(t, "dall-e-3", server.requests[0]["model"])
	assert.Equal(t, "1024x1024", server.requests[0]["size"])
	assert.Equal(t, "b64_json", server.requests[0]["response_format"])
	assert.Contains(t, server.requests[0]["prompt"], "Album cover for song 'Rain On Me'")
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		server := &imageServer{status: http.StatusBadRequest}
		_, err := newTestGenerator(t, server.start(t), t.TempDir()).Generate(context.Background(), "T", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image request failed")
	})

	t.Run("empty data", func(t *testing.T) {
		server := &imageServer{payload: ""}
		_, err := newTestGenerator(t, server.start(t), t.TempDir()).Generate(context.Background(), "T", "x")
		assert.Error(t, err)
	})

	t.Run("bad base64", func(t *testing.T) {
		server := &imageServer{payload: "!!not base64!!"}
		_, err := newTestGenerator(t, server.start(t), t.TempDir()).Generate(context.Background(), "T", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})

	t.Run("cancelled", func(t *testing.T) {
		server := &imageServer{payload: "aGk="}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestGenerator(t, server.start(t), t.TempDir()).Generate(ctx, "T", "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
