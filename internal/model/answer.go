package model

// CachedAnswer is the full response produced for a query. Documents and Metadatas are
// grouped per retrieval call, matching the shape returned by the document index.
type CachedAnswer struct {
	Answer     string                `json:"answer"`
	Documents  [][]string            `json:"documents"`
	Metadatas  [][]map[string]string `json:"metadatas"`
	References []string              `json:"references"`
}

type CacheEntry struct {
	ID        string            `json:"id"`
	Query     string            `json:"query"`
	Embedding []float32         `json:"embedding"`
	Payload   map[string]string `json:"payload"`
	Ctime     int64             `json:"ctime"`
}
