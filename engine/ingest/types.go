package ingest

import "github.com/policywise/policywise/engine/domain"

// ParsedDoc is a knowledge-base document after parsing.
type ParsedDoc struct {
	ID            string
	Title         string
	Type          string
	Content       string
	InsuranceType string
	State         string
	Sentences     []string
	Metadata      map[string]string
}

// ChunkedDoc is a parsed document split into embeddable chunks.
type ChunkedDoc struct {
	ParsedDoc
	Chunks []Chunk
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text  string
	Index int
	DocID string
}

// EmbeddedDoc is a chunked document with embeddings, one per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// parseDocument converts a validated Document into a ParsedDoc.
func parseDocument(doc domain.Document) ParsedDoc {
	meta := map[string]string{
		"source_url": doc.SourceURL,
	}
	return ParsedDoc{
		ID:            doc.ID,
		Title:         doc.Title,
		Type:          doc.Type,
		Content:       doc.Content,
		InsuranceType: doc.InsuranceType,
		State:         doc.State,
		Sentences:     splitSentences(doc.Content),
		Metadata:      meta,
	}
}
