package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/pkg/errors"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"mission_name": "Crew-10"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	var out struct {
		MissionName string `json:"mission_name"`
	}
	client := New(WithHTTPClient(srv.Client()))
	require.NoError(t, client.GetJSON(context.Background(), "official", srv.URL, &out))
	assert.Equal(t, "Crew-10", out.MissionName)
}

func TestGetJSONNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out any
	err := New(WithHTTPClient(srv.Client())).GetJSON(context.Background(), "official", srv.URL, &out)
	require.Error(t, err)

	var aerr *errors.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "official", aerr.Source)
	assert.Equal(t, "network", aerr.Kind)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestGetJSONMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mission_name":`)) //nolint:errcheck
	}))
	defer srv.Close()

	var out any
	err := New(WithHTTPClient(srv.Client())).GetJSON(context.Background(), "official", srv.URL, &out)
	require.Error(t, err)

	var aerr *errors.AdapterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "parse", aerr.Kind)
}

func TestGetJSONContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out any
	err := New(WithHTTPClient(srv.Client())).GetJSON(ctx, "official", srv.URL, &out)
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestWithUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "probe/2.0", r.Header.Get("User-Agent"))
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	var out any
	client := New(WithHTTPClient(srv.Client()), WithUserAgent("probe/2.0"))
	require.NoError(t, client.GetJSON(context.Background(), "official", srv.URL, &out))
}
