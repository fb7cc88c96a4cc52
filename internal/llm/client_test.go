package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-assistant/internal/domain"
)

func sseServer(t *testing.T, tokens []string, captured *Request) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			b, _ := json.Marshal(Response{Choices: []Choice{{Text: tok}}})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"\",\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/v1", Logger: domain.NopLogger()})
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.NotNil(t, c.httpClient)
}

func TestGenerate_StreamsTokens(t *testing.T) {
	var req Request
	srv := sseServer(t, []string{"The ", "report ", "covers Q3."}, &req)
	defer srv.Close()

	var got []string
	text, err := newTestClient(srv.URL).Generate(context.Background(),
		domain.GenerateRequest{Text: "quarterly numbers"},
		func(tok string) { got = append(got, tok) })

	require.NoError(t, err)
	assert.Equal(t, "The report covers Q3.", text)
	assert.Equal(t, []string{"The ", "report ", "covers Q3."}, got)

	assert.True(t, req.Stream)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, []string{"<|end|>"}, req.Stop)
	assert.Equal(t, "<|user|>\nSummarize this section concisely:\nquarterly numbers<|end|>\n<|assistant|>\n", req.Prompt)
}

func TestGenerate_NilCallbackReturnsFullText(t *testing.T) {
	srv := sseServer(t, []string{"a", "b", "c"}, nil)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), domain.GenerateRequest{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestGenerate_CancelStopsAtNextToken(t *testing.T) {
	srv := sseServer(t, []string{"one ", "two ", "three "}, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	text, err := newTestClient(srv.URL).Generate(ctx, domain.GenerateRequest{}, func(tok string) {
		got = append(got, tok)
		cancel()
	})

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeCancelled))
	assert.Equal(t, []string{"one "}, got)
	assert.Equal(t, "one ", text)
}

func TestGenerate_HTTPErrorIsInferenceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	calls := 0
	_, err := newTestClient(srv.URL).Generate(context.Background(), domain.GenerateRequest{}, func(string) { calls++ })

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInference))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
	assert.Zero(t, calls)
}

func TestGenerate_StreamErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"par\"}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"context overflow\",\"type\":\"server_error\"}}\n\n")
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), domain.GenerateRequest{}, nil)

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInference))
	assert.Contains(t, err.Error(), "context overflow")
	assert.Equal(t, "par", text)
}

func TestGenerate_StreamClosedBeforeCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"The report\"}]}\n\n")
	}))
	defer srv.Close()

	var got []string
	text, err := newTestClient(srv.URL).Generate(context.Background(), domain.GenerateRequest{},
		func(tok string) { got = append(got, tok) })

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInference))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "stream ended before completion")
	assert.Equal(t, "The report", text)
	assert.Equal(t, []string{"The report"}, got)
}

func TestGenerate_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Generate(context.Background(), domain.GenerateRequest{}, nil)

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInference))
}

func TestGenerate_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer local-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "local-key", Logger: domain.NopLogger()})
	_, err := c.Generate(context.Background(), domain.GenerateRequest{}, nil)
	require.NoError(t, err)
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  domain.GenerateRequest
		want string
	}{
		{
			name: "default instruction",
			req:  domain.GenerateRequest{Text: "body"},
			want: "<|user|>\nSummarize this section concisely:\nbody<|end|>\n<|assistant|>\n",
		},
		{
			name: "custom instruction",
			req:  domain.GenerateRequest{Instruction: SynthesisInstruction, Text: "p1\np2"},
			want: "<|user|>\nSynthesize these into a master report:\np1\np2<|end|>\n<|assistant|>\n",
		},
		{
			name: "question without text",
			req:  domain.GenerateRequest{Instruction: QuestionInstruction("ctx", "why?")},
			want: "<|user|>\nContext: ctx\n\nQuestion: why?\n<|end|>\n<|assistant|>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPrompt(tt.req))
		})
	}
}

func TestStreamParser_ChatDeltaAndKeepAlives(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"data: not-json",
		`data: {"choices":[{"delta":{"content":"hi"}}]}`,
		`data:{"choices":[{"text":"!","finish_reason":"length"}]}`,
	}, "\n")

	p := NewStreamParser(strings.NewReader(input))

	c, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Content)
	assert.False(t, c.Done)

	c, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "!", c.Content)
	assert.True(t, c.Done)

	c, err = p.Next()
	require.NoError(t, err)
	assert.True(t, c.Done)
}

func TestStreamParser_EOFWithoutTerminalFrame(t *testing.T) {
	p := NewStreamParser(strings.NewReader(`data: {"choices":[{"text":"half"}]}` + "\n"))

	c, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "half", c.Content)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	p = NewStreamParser(strings.NewReader("data: [DONE]\n"))
	c, err = p.Next()
	require.NoError(t, err)
	assert.True(t, c.Done)
}
