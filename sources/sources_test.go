package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		check(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestActivityGetActiveSessions(t *testing.T) {
	server := serve(t, func(r *http.Request) {
		assert.Equal(t, "/api/v2", r.URL.Path)
		assert.Equal(t, "get_activity", r.URL.Query().Get("cmd"))
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
	}, `{"response":{"result":"success","data":{"sessions":[
		{"session_id":"abc","user":"alice","full_title":"Film","media_type":"movie",
		 "duration":"7200000","player":"TV","quality_profile":"1080p","progress_percent":"55"}]}}}`)

	sessions, err := NewActivity(server.URL, "key").GetActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Session{{
		SessionId: "abc",
		Username:  "alice",
		Title:     "Film",
		MediaType: "movie",
		Duration:  7200,
		Player:    "TV",
		Quality:   "1080p",
		Progress:  55,
	}}, sessions)
}

func TestActivityErrorResult(t *testing.T) {
	server := serve(t, func(r *http.Request) {}, `{"response":{"result":"error","message":"bad key"}}`)

	_, err := NewActivity(server.URL, "key").GetActiveSessions(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestQueueGetQueue(t *testing.T) {
	server := serve(t, func(r *http.Request) {
		assert.Equal(t, "/api/v3/queue", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
	}, `{"records":[{"id":3,"title":"Show S01E01","quality":{"quality":{"name":"WEBDL-1080p"}},
		"size":1000,"sizeleft":250,"status":"downloading","downloadId":"nzo_1"}]}`)

	q := NewQueue("queue_a", server.URL+"/", "secret")
	assert.Equal(t, "queue_a", q.Name())
	items, err := q.GetQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []QueueItem{{
		Id:         3,
		Title:      "Show S01E01",
		Quality:    "WEBDL-1080p",
		Size:       1000,
		Progress:   75,
		Status:     "downloading",
		DownloadId: "nzo_1",
	}}, items)
}

func TestDownloadsGetActiveDownloads(t *testing.T) {
	server := serve(t, func(r *http.Request) {
		assert.Equal(t, "queue", r.URL.Query().Get("mode"))
	}, `{"queue":{"speed":"4.2 M","slots":[
		{"filename":"a","percentage":"10","timeleft":"0:05:00","status":"Downloading"},
		{"filename":"b","percentage":"0","timeleft":"0:00:00","status":"Queued"}]}}`)

	items, err := NewDownloads(server.URL, "key").GetActiveDownloads(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "4.2 M", items[0].Speed)
	assert.Equal(t, 10, items[0].Progress)
	assert.Empty(t, items[1].Speed)
	assert.Equal(t, "Queued", items[1].State)
}

func TestUnexpectedStatusIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewQueue("queue_b", server.URL, "k").GetQueue(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "queue_b", upstream.Source)
}

func TestErrorBodyIsTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	_, err := NewDownloads(server.URL, "k").GetActiveDownloads(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Contains(t, err.Error(), strings.Repeat("x", maxErrorBody))
	assert.NotContains(t, err.Error(), strings.Repeat("x", maxErrorBody+1))
}
