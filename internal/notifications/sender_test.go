package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpoSender_Send(t *testing.T) {
	var got []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"t-1"},
			{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}
		]}`))
	}))
	defer srv.Close()

	msgs := []Message{
		NewMessage("ExponentPushToken[aaa]", "t1", "b1"),
		NewMessage("ExponentPushToken[bbb]", "t2", "b2"),
	}
	result, err := NewExpoSender(srv.URL, time.Second, nil).Send(context.Background(), msgs)
	require.NoError(t, err)

	assert.Equal(t, msgs, got)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Tickets, 2)
	assert.Equal(t, "DeviceNotRegistered", result.Tickets[1].Details.Error)
}

func TestExpoSender_WireFormat(t *testing.T) {
	var raw []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	_, err := NewExpoSender(srv.URL, time.Second, nil).Send(context.Background(),
		[]Message{NewMessage("tok", "title", "body")})
	require.NoError(t, err)

	require.Len(t, raw, 1)
	assert.Equal(t, map[string]any{"to": "tok", "sound": "default", "title": "title", "body": "body"}, raw[0])
}

func TestExpoSender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"server error", http.StatusBadGateway, "bad gateway", true},
		{"client error", http.StatusBadRequest, `{"errors":[{"code":"VALIDATION_ERROR"}]}`, true},
		{"undecodable 2xx body is not a failure", http.StatusOK, "<html>ok</html>", false},
		{"empty data", http.StatusOK, `{"data":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result, err := NewExpoSender(srv.URL, time.Second, nil).Send(context.Background(),
				[]Message{NewMessage("tok", "t", "b")})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "relay returned")
				return
			}
			require.NoError(t, err)
			assert.Zero(t, result.Delivered)
			assert.Zero(t, result.Rejected)
		})
	}
}

func TestExpoSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewExpoSender(url, time.Second, nil).Send(context.Background(), []Message{NewMessage("tok", "t", "b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post to relay")
}

func TestExpoSender_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewExpoSender(srv.URL, 50*time.Millisecond, nil).Send(context.Background(), []Message{NewMessage("tok", "t", "b")})
	require.Error(t, err)
}
