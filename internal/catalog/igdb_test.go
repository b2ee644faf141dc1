package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/ziyou/internal/logging"
)

func TestNewIGDBResolver_RequiresCredentials(t *testing.T) {
	_, err := NewIGDBResolver(context.Background(), IGDBConfig{ClientID: "id"}, logging.Discard())
	assert.Error(t, err)
}

func TestGetTwitchToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token": "tok", "expires_in": 3600}`))
	}))
	defer srv.Close()

	token, err := getTwitchToken(context.Background(), srv.Client(), srv.URL, "id", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestGetTwitchToken_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := getTwitchToken(context.Background(), srv.Client(), srv.URL, "id", "bad")
	assert.Error(t, err)
}

func TestNewIGDBResolver_UsesTokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token": "tok"}`))
	}))
	defer srv.Close()

	r, err := NewIGDBResolver(context.Background(), IGDBConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		HTTPClient:   srv.Client(),
	}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "igdb", r.Name())
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/co1abc.jpg", imageURL("cover_big", "co1abc"))
	assert.Equal(t, "", imageURL("cover_big", ""))
}
