package querycache

import (
	"encoding/json"
	"fmt"

	"github.com/xxxsen/ragcache/internal/model"
)

const (
	PayloadQuery      = "query"
	PayloadAnswer     = "answer"
	PayloadDocuments  = "documents"
	PayloadMetadatas  = "metadatas"
	PayloadReferences = "references"
)

// EncodePayload flattens an answer into the string map kept next to the query vector.
// List valued fields are stored as json.
func EncodePayload(query string, answer *model.CachedAnswer) (map[string]string, error) {
	if answer == nil {
		return nil, fmt.Errorf("answer is nil")
	}
	documents, err := encodeField(answer.Documents, [][]string{})
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	metadatas, err := encodeField(answer.Metadatas, [][]map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("encode metadatas: %w", err)
	}
	references, err := encodeField(answer.References, []string{})
	if err != nil {
		return nil, fmt.Errorf("encode references: %w", err)
	}
	return map[string]string{
		PayloadQuery:      query,
		PayloadAnswer:     answer.Answer,
		PayloadDocuments:  documents,
		PayloadMetadatas:  metadatas,
		PayloadReferences: references,
	}, nil
}

func encodeField[T any](v T, empty T) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		raw, err = json.Marshal(empty)
		if err != nil {
			return "", err
		}
	}
	return string(raw), nil
}

// DecodePayload rebuilds an answer. The answer field is required; missing list fields
// decode as empty.
func DecodePayload(payload map[string]string) (*model.CachedAnswer, error) {
	answer, ok := payload[PayloadAnswer]
	if !ok {
		return nil, fmt.Errorf("payload missing %q", PayloadAnswer)
	}
	out := &model.CachedAnswer{Answer: answer}
	if err := decodeField(payload, PayloadDocuments, &out.Documents); err != nil {
		return nil, err
	}
	if err := decodeField(payload, PayloadMetadatas, &out.Metadatas); err != nil {
		return nil, err
	}
	if err := decodeField(payload, PayloadReferences, &out.References); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeField(payload map[string]string, key string, dst interface{}) error {
	raw, ok := payload[key]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
