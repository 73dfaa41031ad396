package model

type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeCode  ChunkType = "code"
	ChunkTypeTable ChunkType = "table"
)

type Chunk struct {
	Content    string    `json:"content"`
	Heading    string    `json:"heading"`
	ChunkType  ChunkType `json:"chunk_type"`
	TokenCount int       `json:"token_count"`
	Position   int       `json:"position"`
}
