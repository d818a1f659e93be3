package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ollamaEmbedPath, r.URL.Path)
		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := EmbeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{float32(i), 1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	o := NewOllama(OllamaOptions{APIURL: srv.URL + "/", EmbeddingModel: "nomic-embed-text"}, nil)
	vecs, err := o.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
}

func TestOllamaInvoke(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ollamaGeneratePath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.2:3b", req.Model)
		assert.Equal(t, float64(250), req.Options["num_predict"])

		json.NewEncoder(w).Encode(GenerateResponse{Response: "pong", Done: true})
	}))
	defer srv.Close()

	o := NewOllama(OllamaOptions{APIURL: srv.URL, APIKey: "secret", ChatModel: "llama3.2:3b", MaxTokens: 250}, nil)
	out, err := o.Invoke(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, int32(2), calls.Load(), "503 is retried")
}

func TestOllamaInvokeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"","done":true}`))
	}))
	defer srv.Close()

	_, err := NewOllama(OllamaOptions{APIURL: srv.URL}, nil).Invoke(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
