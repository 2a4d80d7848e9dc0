package retrieval

import "context"

// EmbedClient is the subset of the Ollama client the embedder needs.
type EmbedClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// ModelEmbedder binds an embedding client to a fixed model, satisfying
// the Embedder interface.
type ModelEmbedder struct {
	client EmbedClient
	model  string
}

// NewEmbedder wraps client so every Embed call uses the given model.
func NewEmbedder(client EmbedClient, model string) *ModelEmbedder {
	return &ModelEmbedder{client: client, model: model}
}

func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}
