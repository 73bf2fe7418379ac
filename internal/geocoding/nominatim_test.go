package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnknownOlympus/chil/internal/geocoding"
)

// mockHTTPClient is a mock implementation of HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newNominatim(client geocoding.HTTPClient) *geocoding.NominatimProvider {
	return geocoding.NewNominatimProviderWithClient(client, slog.Default(), geocoding.WithRateLimit(1000))
}

func TestNominatimProvider_Geocode(t *testing.T) {
	ctx := context.Background()

	t.Run("successful geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Contains(t, req.URL.String(), "nominatim.openstreetmap.org")
				assert.Equal(t, "Assisi, Perugia", req.URL.Query().Get("q"))
				assert.Equal(t, "json", req.URL.Query().Get("format"))
				assert.Equal(t, "1", req.URL.Query().Get("limit"))
				assert.Equal(t, "it", req.URL.Query().Get("accept-language"))
				assert.Equal(t, "chil/1.0 (https://github.com/UnknownOlympus/chil)", req.Header.Get("User-Agent"))

				return jsonResponse(http.StatusOK, `[{"lat":"43.0707","lon":"12.6196","display_name":"Assisi"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, slog.Default(),
			geocoding.WithRateLimit(1000), geocoding.WithLanguage("it"))
		point, err := provider.Geocode(ctx, "Assisi, Perugia")

		require.NoError(t, err)
		require.NotNil(t, point)
		assert.InEpsilon(t, 43.0707, point.Latitude, 0.0001)
		assert.InEpsilon(t, 12.6196, point.Longitude, 0.0001)
	})

	t.Run("custom instance", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "geo.example.org", req.URL.Host)
				assert.Equal(t, "en", req.URL.Query().Get("accept-language"))
				return jsonResponse(http.StatusOK, `[{"lat":"1","lon":"2"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, slog.Default(),
			geocoding.WithRateLimit(1000), geocoding.WithBaseURL("https://geo.example.org/search"))
		_, err := provider.Geocode(ctx, "Assisi")
		require.NoError(t, err)
	})

	t.Run("empty response from API", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		point, err := newNominatim(mockClient).Geocode(ctx, "nowhere")

		require.Nil(t, point)
		assert.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, "slow down"), nil
			},
		}

		point, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.Nil(t, point)
		require.ErrorIs(t, err, geocoding.ErrNominatimStatus)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{not json`), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.ErrorContains(t, err, "failed to decode nominatim response")
	})

	t.Run("invalid latitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"north","lon":"12.6"}]`), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "latitude")
	})

	t.Run("longitude out of range", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"43","lon":"212.6"}]`), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "longitude")
	})

	t.Run("HTTP client returns error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("request must not be sent")
				return nil, nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(cancelled, "Assisi")

		require.ErrorContains(t, err, "rate limiter wait failed")
	})
}

func TestNominatimProvider_PlaceFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("drops the leading component", func(t *testing.T) {
		var queries []string
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				q := req.URL.Query().Get("q")
				queries = append(queries, q)
				if q == "Fiastra, Macerata" {
					return jsonResponse(http.StatusOK, `[{"lat":"43.03","lon":"13.15"}]`), nil
				}
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		point, err := newNominatim(mockClient).Geocode(ctx, "Rifugio Vallonina, Fiastra, Macerata")

		require.NoError(t, err)
		assert.InEpsilon(t, 43.03, point.Latitude, 0.0001)
		assert.Equal(t, []string{"Rifugio Vallonina, Fiastra, Macerata", "Fiastra, Macerata"}, queries)
	})

	t.Run("all fallbacks fail", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "A, B, C, D")

		require.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
		assert.Equal(t, 3, calls)
	})

	t.Run("single component has no fallback", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "Assisi")

		require.ErrorIs(t, err, geocoding.ErrNominatimEmptyResponse)
		assert.Equal(t, 1, calls)
	})

	t.Run("API error stops the fallbacks", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return jsonResponse(http.StatusInternalServerError, "boom"), nil
			},
		}

		_, err := newNominatim(mockClient).Geocode(ctx, "A, B, C")

		require.ErrorIs(t, err, geocoding.ErrNominatimStatus)
		assert.Equal(t, 1, calls)
	})
}
