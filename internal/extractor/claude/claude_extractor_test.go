package claude_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/config"
	"policonv/internal/extractor"
	"policonv/internal/extractor/claude"
	"policonv/internal/port"
)

func testExtractorConfig() *config.ExtractorConfig {
	return &config.ExtractorConfig{
		Provider:     "claude",
		APIKey:       "test-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  5,
	}
}

func extractionResponse(pagesJSON string) string {
	body := map[string]any{
		"content":     []map[string]any{{"type": "text", "text": pagesJSON}},
		"stop_reason": "end_turn",
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestExtractPages_PDF(t *testing.T) {
	var captured struct {
		headers http.Header
		body    map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		fmt.Fprint(w, extractionResponse(`{
			"pages": [
				{
					"pageNumber": 1,
					"fields": [
						{"name": "Policy number", "value": "POL-1", "confidence": 0.95}
					],
					"tables": [
						{"title": "Charges", "cells": [
							{"row": 0, "column": 0, "content": "Rev Code", "isHeader": true}
						]}
					]
				}
			]
		}`))
	}))
	defer srv.Close()

	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), srv.URL)
	out, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:    []byte("%PDF-1.4"),
		ContentType:  "application/pdf",
		DocumentType: "invoice",
	})

	require.NoError(t, err)
	assert.Equal(t, "test-key", captured.headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", captured.headers.Get("anthropic-version"))
	assert.Equal(t, "claude-sonnet-4-20250514", captured.body["model"])
	assert.Equal(t, float64(16384), captured.body["max_tokens"])

	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "document", content[0].(map[string]any)["type"])
	assert.Equal(t, "text", content[1].(map[string]any)["type"])

	require.Len(t, out.Pages, 1)
	page := out.Pages[0]
	assert.Equal(t, 1, page.PageNumber)
	require.Len(t, page.Fields, 1)
	assert.Equal(t, "POL-1", page.Fields[0].Value)
	assert.NotEmpty(t, page.Fields[0].ID, "missing observation IDs are filled in")
	assert.Equal(t, 1, page.Fields[0].PageNumber)
	require.Len(t, page.Tables, 1)
	assert.NotEmpty(t, page.Tables[0].ID)
	assert.Equal(t, 1, page.Tables[0].Cells[0].Rowspan, "zero spans normalize to 1")
	assert.Equal(t, 1, page.Tables[0].Cells[0].Colspan)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
}

func TestExtractPages_MarkdownSendsInlineText(t *testing.T) {
	var content []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content = body["messages"].([]any)[0].(map[string]any)["content"].([]any)
		fmt.Fprint(w, extractionResponse(`{"pages": []}`))
	}))
	defer srv.Close()

	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), srv.URL)
	_, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:   []byte("# Invoice\nPolicy number: POL-1"),
		ContentType: "text/markdown",
	})

	require.NoError(t, err)
	require.Len(t, content, 2)
	first := content[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.Contains(t, first["text"], "Policy number: POL-1")
}

func TestExtractPages_UnsupportedContentType(t *testing.T) {
	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), "http://unused")
	_, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:   []byte("data"),
		ContentType: "application/zip",
	})
	assert.Error(t, err)
}

func TestExtractPages_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"type": "rate_limit_error"}}`)
	}))
	defer srv.Close()

	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), srv.URL)
	_, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:   []byte("%PDF-1.4"),
		ContentType: "application/pdf",
	})

	var rlErr *extractor.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, "30s", rlErr.RetryAfter.String())
}

func TestExtractPages_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"type": "overloaded_error"}}`)
	}))
	defer srv.Close()

	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), srv.URL)
	_, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:   []byte("%PDF-1.4"),
		ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestExtractPages_TruncatedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content": [{"type": "text", "text": "{\"pages\":"}], "stop_reason": "max_tokens"}`)
	}))
	defer srv.Close()

	ext := claude.NewExtractorWithEndpoint(testExtractorConfig(), srv.URL)
	_, err := ext.ExtractPages(context.Background(), port.ExtractInput{
		FileBytes:   []byte("%PDF-1.4"),
		ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}
