package mapping_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/config"
	"policonv/internal/mapping"
	"policonv/internal/port"
)

func testMapperConfig() *config.MapperConfig {
	return &config.MapperConfig{
		APIKey:       "test-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  5,
	}
}

func anthropicResponse(text string) string {
	resp := map[string]any{
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestClient_GenerateBundle_Success(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		bundleJSON := `{"schemaVersion":"1.0.0","policyConversion":{"Provider name":{"value":"Sunrise Care LLC","confidence":0.8,"sources":[{"page":1,"snippet":"Sunrise Care LLC"}]}}}`
		_, _ = w.Write([]byte(anthropicResponse(bundleJSON)))
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	det := detBundle()
	resp, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: det,
		Payload:       json.RawMessage(`{"jobId":"j-1","pages":[]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-20250514", resp.ModelUsed)
	require.NotNil(t, resp.Bundle)
	slot := resp.Bundle.PolicyConversion["Provider name"]
	require.NotNil(t, slot)
	assert.Equal(t, "Sunrise Care LLC", slot.Value)

	assert.Equal(t, "claude-sonnet-4-20250514", captured["model"])
	assert.EqualValues(t, 16384, captured["max_tokens"])
	assert.NotEmpty(t, captured["system"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
}

func TestClient_GenerateBundle_StripsCodeFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fenced := "```json\n{\"schemaVersion\":\"1.0.0\",\"policyConversion\":{}}\n```"
		_, _ = w.Write([]byte(anthropicResponse(fenced)))
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	resp, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: detBundle(),
		Payload:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", resp.Bundle.SchemaVersion)
}

func TestClient_GenerateBundle_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	_, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: detBundle(),
		Payload:       json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_GenerateBundle_TruncatedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"content":     []map[string]any{{"type": "text", "text": `{"partial":`}},
			"stop_reason": "max_tokens",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	_, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: detBundle(),
		Payload:       json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestClient_GenerateBundle_MalformedBundle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(anthropicResponse("this is not JSON")))
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	_, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: detBundle(),
		Payload:       json.RawMessage(`{}`),
	})
	assert.Error(t, err)
}

func TestClient_GenerateBundle_RequestCarriesSkeletonAndPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(anthropicResponse(`{"schemaVersion":"1.0.0","policyConversion":{}}`)))
	}))
	defer server.Close()

	client := mapping.NewClientWithEndpoint(testMapperConfig(), server.URL)
	_, err := client.GenerateBundle(context.Background(), port.MappingRequest{
		Deterministic: detBundle(),
		Payload:       json.RawMessage(`{"jobId":"j-42","originalFilename":"invoice.pdf"}`),
	})
	require.NoError(t, err)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 5)

	var texts []string
	for _, block := range content {
		texts = append(texts, block.(map[string]any)["text"].(string))
	}
	joined := strings.Join(texts, "\n")
	assert.Contains(t, joined, `"schemaVersion"`, "deterministic skeleton is embedded")
	assert.Contains(t, joined, `"jobId":"j-42"`, "extraction payload is embedded")
}
