package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientErrorMapping(t *testing.T) {
	t.Run("404 maps to ErrRoomNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
		}))
		defer srv.Close()

		_, err := NewAPIClient(srv.URL).FetchRoom("gone")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("API error payloads surface their message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "room is full"})
		}))
		defer srv.Close()

		_, err := NewAPIClient(srv.URL).JoinRoom("room-1", "Frank")
		assert.EqualError(t, err, "room is full")
	})

	t.Run("non-JSON failures fall back to the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewAPIClient(srv.URL).FetchRoom("room-1")
		assert.ErrorContains(t, err, "500")
	})
}

func TestAPIClientAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/anonymous":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			uid := body["uid"]
			if uid == "" {
				uid = "uid-minted"
			}
			json.NewEncoder(w).Encode(map[string]string{"uid": uid, "token": "token-" + uid})
		default:
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]string{})
		}
	}))
	defer srv.Close()

	api := NewAPIClient(srv.URL)

	uid, err := api.SignInAnonymously("")
	require.NoError(t, err)
	assert.Equal(t, "uid-minted", uid)

	_, err = api.FetchRoom("room-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-uid-minted", gotAuth)

	t.Run("re-sign-in keeps the supplied uid", func(t *testing.T) {
		uid, err := api.SignInAnonymously("uid-existing")
		require.NoError(t, err)
		assert.Equal(t, "uid-existing", uid)

		_, err = api.FetchRoom("room-1")
		require.NoError(t, err)
		assert.Equal(t, "Bearer token-uid-existing", gotAuth)
	})
}
