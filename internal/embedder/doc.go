// Package embedder generates vector embeddings for post text.
//
// Three providers are supported. Jina AI and OpenAI are called over HTTP and
// asked for vectors of the requested width. The local provider needs no
// network: it feature-hashes words into a normalized vector, which is enough
// to relate posts that share vocabulary.
//
// # Basic Usage
//
//	emb, err := embedder.NewFromEnv(storage.EmbeddingDimensions)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := emb.Embed(ctx, []string{post1Text, post2Text})
//
// # Provider Selection
//
// NewFromEnv picks, in order: EMBEDDING_PROVIDER if set, Jina when
// JINA_API_KEY is set, OpenAI when OPENAI_API_KEY is set, and otherwise the
// local provider.
//
// # Caching
//
// Vectors are cached in an LRU keyed by the SHA-256 of the text, so
// re-embedding an unchanged post costs nothing within one process. Cached
// vectors are copied on the way out.
//
// # Retries
//
// HTTP providers retry failed calls with exponential backoff (100ms doubling
// up to 5s, three attempts). Client errors other than 429 are not retried.
package embedder
