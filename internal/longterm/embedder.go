package longterm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/philippgille/chromem-go"
	"google.golang.org/genai"
)

const geminiTaskTypeDocument = "RETRIEVAL_DOCUMENT"

// NewGeminiEmbedder creates an embedding function backed by Gemini's
// embedding API.
func NewGeminiEmbedder(client *genai.Client, modelName string, dim int) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
		outputDim := int32(dim)
		res, err := client.Models.EmbedContent(ctx, modelName, contents, &genai.EmbedContentConfig{
			TaskType:             geminiTaskTypeDocument,
			OutputDimensionality: &outputDim,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedding: %w", err)
		}
		if len(res.Embeddings) == 0 {
			return nil, fmt.Errorf("gemini embedding: empty response")
		}
		values := res.Embeddings[0].Values
		normalize(values)
		return values, nil
	}
}

// NewLocalEmbedder returns a deterministic token-hash embedder. It has no
// semantic understanding but gives stable, self-consistent vectors, which is
// enough for dev setups and tests that run without an embedding API.
func NewLocalEmbedder(dim int) chromem.EmbeddingFunc {
	if dim <= 0 {
		dim = 256
	}
	return func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, dim)
		tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if len(tokens) == 0 {
			v[0] = 1
			return v, nil
		}
		for _, token := range tokens {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			sum := h.Sum32()
			v[int(sum)%dim] += 1
			v[int(sum>>16)%dim] += 0.5
		}
		normalize(v)
		return v, nil
	}
}

// normalize performs L2 normalization in place.
func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
