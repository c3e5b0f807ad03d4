package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPValidatorAccepts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, validatePath, r.URL.Path)
		assert.Equal(t, "Bearer good", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL)
	valid, err := v.Validate(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestHTTPValidatorRejectsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL)
	valid, err := v.Validate(context.Background(), "expired")
	require.NoError(t, err)
	assert.False(t, valid)

	// A denial is a verdict, not a failure to retry.
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPValidatorRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the connection without a response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL)
	valid, err := v.Validate(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTPValidatorHonorsContext(t *testing.T) {
	// Nothing listens here; every attempt is a transport error.
	v := NewHTTPValidator("http://127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, "token")
	assert.Error(t, err)
}

func TestHTTPValidatorTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, validatePath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL + "/")
	valid, err := v.Validate(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestMockValidator(t *testing.T) {
	v := &MockValidator{Denied: map[string]bool{"bad": true}}

	valid, err := v.Validate(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = v.Validate(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGetAllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("TEST_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	origins := GetAllowedOriginsFromEnv("TEST_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	t.Setenv("TEST_ALLOWED_ORIGINS", "")
	origins = GetAllowedOriginsFromEnv("TEST_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	assert.Equal(t, []string{"http://localhost:3000"}, origins)
}
