package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResendRequiresAPIKey(t *testing.T) {
	_, err := NewResend("", "")
	require.Error(t, err)
}

func TestResendSendSuccess(t *testing.T) {
	var got resendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg_123"})
	}))
	defer srv.Close()

	gw, err := NewResend("re_test_key", srv.URL)
	require.NoError(t, err)

	text := "plain body"
	id, err := gw.Send(context.Background(), Message{
		From:    "from@example.com",
		To:      []string{"to@example.com"},
		Subject: "Hi",
		HTML:    "<p>hi</p>",
		Text:    &text,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)

	assert.Equal(t, "from@example.com", got.From)
	assert.Equal(t, []string{"to@example.com"}, got.To)
	assert.Equal(t, "plain body", got.Text)
}

func TestResendSendProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid `to` address"})
	}))
	defer srv.Close()

	gw, err := NewResend("re_test_key", srv.URL)
	require.NoError(t, err)

	_, err = gw.Send(context.Background(), Message{
		From: "from@example.com",
		To:   []string{"nope"},
	})
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de), "provider rejection must be a DeliveryError")
	assert.Equal(t, "resend", de.Provider)
	assert.Contains(t, de.Reason, "invalid `to` address")
}

func TestResendSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	gw, err := NewResend("re_test_key", srv.URL)
	require.NoError(t, err)

	_, err = gw.Send(context.Background(), Message{To: []string{"to@example.com"}})
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
}
