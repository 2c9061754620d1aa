package embedder

// Embedder turns raw text into a fixed-length vector. Implementations must
// be safe for concurrent use.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dim() int
	Close() error
}
