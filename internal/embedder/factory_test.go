package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{"explicit jina provider", "jina", "", "", ProviderJina},
		{"explicit provider is lowercased", "OpenAI", "", "", ProviderOpenAI},
		{"explicit local wins over keys", "local", "k", "k", ProviderLocal},
		{"jina key present", "", "k", "", ProviderJina},
		{"jina preferred over openai", "", "k", "k", ProviderJina},
		{"openai key present", "", "", "k", ProviderOpenAI},
		{"nothing configured", "", "", "", ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)

			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("local by default", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")

		emb, err := NewFromEnv(768)
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderLocal, emb.Provider())
		assert.Equal(t, 768, emb.Dimension())
	})

	t.Run("openai key is picked up", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "sk-test")

		emb, err := NewFromEnv(768)
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderOpenAI, emb.Provider())
	})

	t.Run("explicit provider without key", func(t *testing.T) {
		t.Setenv(EnvProvider, "jina")
		t.Setenv(EnvJinaAPIKey, "")

		_, err := NewFromEnv(768)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv(EnvProvider, "word2vec")

		_, err := NewFromEnv(768)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestNew(t *testing.T) {
	emb, err := New(Config{Provider: "local", Dimension: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, emb.Dimension())

	emb, err = New(Config{Provider: "openai", APIKey: "k", Dimension: 16, CacheSize: 5})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, emb.Model())

	_, err = New(Config{Provider: "", Dimension: 16})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
