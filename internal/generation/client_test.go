package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Retry: retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			Multiplier:  2,
		},
		RateLimit: 1000,
		Burst:     1000,
	}
}

func TestClient_Generate_OpenAILeg(t *testing.T) {
	var openAICalls, nativeCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			openAICalls.Add(1)
			fmt.Fprint(w, `{"choices":[{"message":{"content":"openai answer"}}]}`)
		case "/api/chat":
			nativeCalls.Add(1)
			fmt.Fprint(w, `{"message":{"content":"native answer"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	text, err := client.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "openai answer", text)
	assert.Equal(t, int32(1), openAICalls.Load())
	assert.Equal(t, int32(0), nativeCalls.Load(), "native leg untouched when the first leg works")
}

func TestClient_Generate_FallsBackToNative(t *testing.T) {
	var openAICalls, nativeCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			openAICalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case "/api/chat":
			nativeCalls.Add(1)
			fmt.Fprint(w, `{"message":{"content":"native answer"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	text, err := client.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "native answer", text)
	assert.Equal(t, int32(1), openAICalls.Load(), "a 404 is permanent, no retry on that leg")
	assert.Equal(t, int32(1), nativeCalls.Load())
}

func TestClient_Generate_RetriesServerErrors(t *testing.T) {
	var openAICalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if openAICalls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"second try"}}]}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	text, err := client.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "second try", text)
	assert.Equal(t, int32(2), openAICalls.Load())
}

func TestClient_Generate_BothLegsFail(t *testing.T) {
	var openAICalls, nativeCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			openAICalls.Add(1)
		case "/api/chat":
			nativeCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	_, err := client.Generate(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "chat completions")
	assert.Contains(t, err.Error(), "native chat")
	assert.Equal(t, int32(2), openAICalls.Load(), "each leg gets its full retry budget")
	assert.Equal(t, int32(2), nativeCalls.Load())
}

func TestClient_Generate_EmptyPrompt(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), zap.NewNop())
	_, err := client.Generate(context.Background(), Request{Prompt: "  "})
	assert.Error(t, err)
}

func TestExtractText_ShapePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "openai chat shape",
			body: `{"choices":[{"message":{"content":"chat"}}]}`,
			want: "chat",
		},
		{
			name: "openai completions shape",
			body: `{"choices":[{"text":"completion"}]}`,
			want: "completion",
		},
		{
			name: "native chat shape",
			body: `{"message":{"content":"native"}}`,
			want: "native",
		},
		{
			name: "bare content shape",
			body: `{"content":"bare"}`,
			want: "bare",
		},
		{
			name: "bare response shape",
			body: `{"response":"resp"}`,
			want: "resp",
		},
		{
			name: "chat shape wins over later shapes",
			body: `{"choices":[{"message":{"content":"chat"},"text":"completion"}],"content":"bare","response":"resp"}`,
			want: "chat",
		},
		{
			name: "choices text wins over message-level content",
			body: `{"choices":[{"text":"completion"}],"message":{"content":"native"}}`,
			want: "completion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractText([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractText_Unrecognized(t *testing.T) {
	_, err := extractText([]byte(`{"unrelated":"field"}`))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = extractText([]byte(`not json`))
	assert.Error(t, err)
}

func TestClient_Probe(t *testing.T) {
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	require.NoError(t, client.Probe(context.Background()))
	assert.Equal(t, "/api/tags", path.Load())
}

func TestClient_Probe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(testConfig(server.URL), zap.NewNop())
	err := client.Probe(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, "Qwen3-Coder-30B", cfg.Model)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
}

func TestConfig_ApplyDefaults_KeepsZeroTemperature(t *testing.T) {
	cfg := Config{Temperature: 0}
	cfg.ApplyDefaults()

	assert.Zero(t, cfg.Temperature)
}
