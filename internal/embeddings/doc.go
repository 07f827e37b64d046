// Package embeddings provides text embeddings for the semantic property index.
//
// Three providers are available: FastEmbed (local ONNX, cgo builds only),
// TEI (a Text Embeddings Inference server), and openai (any OpenAI-compatible
// embeddings API through langchaingo). Embeddings only ever produce
// suggestions for unresolved property mentions, so callers treat every
// provider error as "no suggestions" rather than a failed request.
package embeddings
