package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// newTestProvider points an HTTPProvider at handler with a fast retry policy
func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider("test-key", 4, NewCache(10))
	require.NoError(t, err)
	p.endpoint = server.URL
	p.retry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// echoEmbeddings answers with vectors whose first entry is the input index,
// listed in reverse order to exercise index placement
func echoEmbeddings(t *testing.T, w http.ResponseWriter, r *http.Request) {
	var req apiRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

	type datum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]datum, 0, len(req.Input))
	for i := len(req.Input) - 1; i >= 0; i-- {
		vec := make([]float32, req.Dimensions)
		vec[0] = float32(i)
		data = append(data, datum{Index: i, Embedding: vec})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
}

func TestHTTPProvider_Embed(t *testing.T) {
	var seen atomic.Pointer[apiRequest]
	var auth atomic.Value
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var req apiRequest
		body := json.NewDecoder(r.Body)
		require.NoError(t, body.Decode(&req))
		seen.Store(&req)

		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, req.Dimensions)
			vec[0] = float32(i)
			data[i] = map[string]interface{}{"index": i, "embedding": vec}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	vectors, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0, 0}, vectors[1])

	req := seen.Load()
	require.NotNil(t, req)
	assert.Equal(t, []string{"first", "second"}, req.Input)
	assert.Equal(t, DefaultOpenAIModel, req.Model)
	assert.Equal(t, 4, req.Dimensions)
	assert.Equal(t, "Bearer test-key", auth.Load())

	assert.Equal(t, ProviderOpenAI, p.Provider())
	assert.Equal(t, 4, p.Dimension())
}

func TestHTTPProvider_OrdersByIndex(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		echoEmbeddings(t, w, r)
	})

	vectors, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestHTTPProvider_Cache(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		echoEmbeddings(t, w, r)
	})
	ctx := context.Background()

	_, err := p.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	_, err = p.Embed(ctx, []string{"b", "a"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_Retry(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			echoEmbeddings(t, w, r)
		})

		_, err := p.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("rate limiting is retried", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "slow down", http.StatusTooManyRequests)
				return
			}
			echoEmbeddings(t, w, r)
		})

		_, err := p.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad key", http.StatusUnauthorized)
		})

		_, err := p.Embed(context.Background(), []string{"a"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "api error 401")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "down", http.StatusInternalServerError)
		})

		_, err := p.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(MaxRetries), calls.Load())
	})
}

func TestHTTPProvider_WrongDimension(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"index": 0, "embedding": []float32{1, 2}}},
		})
	})

	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPProvider_RequiresKey(t *testing.T) {
	_, err := NewJinaProvider("", 768, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = NewOpenAIProvider("key", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := NewJinaProvider("key", 768, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, p.Provider())
	assert.Equal(t, DefaultJinaModel, p.Model())
	assert.Equal(t, JinaEndpoint, p.endpoint)
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("permanent error stops", func(t *testing.T) {
		calls := 0
		bad := errors.New("bad")
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, permanent(bad)
		})
		assert.Equal(t, bad, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			calls++
			cancel()
			return 0, errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns first success", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			if calls == 2 {
				return 42, nil
			}
			return 0, errors.New("transient")
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})
}
