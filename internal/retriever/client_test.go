package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://retriever:9000/"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestAnswer(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/answer", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(Answer{
			Answer:  "We are open Monday through Friday.",
			Sources: []string{"faq.md"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})
	require.NoError(t, err)

	ans, err := client.Answer(context.Background(), "What are your hours?", []HistoryMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello! How can I help?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "We are open Monday through Friday.", ans.Answer)
	assert.Equal(t, []string{"faq.md"}, ans.Sources)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "What are your hours?", gotBody["question"])
	history, ok := gotBody["history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 2)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://retriever:9000"})
	require.NoError(t, err)

	_, err = client.Answer(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestAnswerUnavailable(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, unavailable: true},
		{name: "server error", status: http.StatusInternalServerError, unavailable: true},
		{name: "bad gateway", status: http.StatusBadGateway, unavailable: true},
		{name: "bad request is permanent", status: http.StatusBadRequest, unavailable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			client, err := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.Answer(context.Background(), "hours?", nil)
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrUnavailable))
		})
	}
}

func TestAnswerTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Answer(context.Background(), "hours?", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
