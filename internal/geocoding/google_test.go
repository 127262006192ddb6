package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grasse = `{
  "status": "OK",
  "results": [{
    "formatted_address": "Route de Cannes, 06130 Grasse, France",
    "address_components": [
      {"long_name": "Grasse", "short_name": "Grasse", "types": ["locality", "political"]},
      {"long_name": "06130", "short_name": "06130", "types": ["postal_code"]},
      {"long_name": "Alpes-Maritimes", "short_name": "AM", "types": ["administrative_area_level_2"]},
      {"long_name": "Provence-Alpes-Côte d'Azur", "short_name": "PACA", "types": ["administrative_area_level_1"]}
    ]
  }]
}`

func TestNewClient_NoKey(t *testing.T) {
	assert.Nil(t, NewClient(""))
}

func TestReverse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "43.650000,6.920000", r.URL.Query().Get("latlng"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(grasse))
	}))
	defer srv.Close()

	c := NewClient("test-key").WithBaseURL(srv.URL)

	res, err := c.Reverse(context.Background(), 6.92, 43.65)
	require.NoError(t, err)
	assert.Equal(t, "Grasse", res.Locality)
	assert.Equal(t, "06130", res.PostalCode)
	assert.Equal(t, "Alpes-Maritimes", res.Department)
	assert.Equal(t, "Grasse (06130)", res.Label())

	_, err = c.Reverse(context.Background(), 6.92, 43.65)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from cache")
}

func TestReverse_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latlng") == "1.000000,1.000000" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k").WithBaseURL(srv.URL)

	_, err := c.Reverse(context.Background(), 1, 1)
	assert.Error(t, err)

	_, err = c.Reverse(context.Background(), 2, 2)
	assert.ErrorContains(t, err, "REQUEST_DENIED")
}

func TestLabel(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, "", nilResult.Label())
	assert.Equal(t, "Grasse", (&Result{Locality: "Grasse"}).Label())
	assert.Equal(t, "somewhere", (&Result{Formatted: "somewhere"}).Label())
}
