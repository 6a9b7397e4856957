package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-exam-grader/internal/adapter/ai"
	"github.com/fairyhunter13/ai-exam-grader/internal/config"
	"github.com/fairyhunter13/ai-exam-grader/internal/observability"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		AppEnv:           "test",
		InferenceBaseURL: baseURL,
		CaptionModel:     "vl-model",
		ScoringModel:     "score-model",
		EmbeddingsModel:  "embed-model",
	}
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func TestComplete_ReturnsContent(t *testing.T) {
	observability.InitMetrics()
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(chatResponse("2"))
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	out, err := c.Complete(context.Background(), "Оценка:", 2)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
	assert.Equal(t, "score-model", gotBody["model"])
	assert.Equal(t, float64(0), gotBody["temperature"])
	assert.Equal(t, float64(2), gotBody["max_tokens"])
}

func TestCaption_SendsInlineImage(t *testing.T) {
	observability.InitMetrics()
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(chatResponse("На картинке видна собака"))
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	out, err := c.Caption(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg", "Опиши изображение")
	require.NoError(t, err)
	assert.Equal(t, "На картинке видна собака", out)
	assert.Contains(t, string(raw), "data:image/jpeg;base64,")
	assert.Contains(t, string(raw), "vl-model")
}

func TestChat_Permanent4xxNotRetried(t *testing.T) {
	observability.InitMetrics()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), "p", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat status 400")
	assert.Equal(t, 1, calls)
}

func TestChat_Retries5xx(t *testing.T) {
	observability.InitMetrics()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse("1"))
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	out, err := c.Complete(context.Background(), "p", 2)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestEmbed(t *testing.T) {
	observability.InitMetrics()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float64{1, 0, float64(i)}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	vecs, err := c.Embed(context.Background(), []string{"текст", "подпись"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{1, 0, 0}, vecs[0])
	assert.Equal(t, []float64{1, 0, 1}, vecs[1])
}

func TestEmbed_CountMismatch(t *testing.T) {
	observability.InitMetrics()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "got 0 embeddings"))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := ai.New(testConfig(srv.URL))
	assert.NoError(t, c.Ping(context.Background()))

	bad := ai.New(testConfig(srv.URL + "/missing"))
	assert.Error(t, bad.Ping(context.Background()))
}
