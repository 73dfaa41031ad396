package model

const MetadataNumber = "number"

type KnowledgeDoc struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}
