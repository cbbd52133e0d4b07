package semantic

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	Title   string            `json:"title"`
	Type    string            `json:"type"`
	DocID   string            `json:"doc_id"`
	Meta    map[string]string `json:"meta"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, title, type, doc_id, insurance_type, state, chunk_index
}
