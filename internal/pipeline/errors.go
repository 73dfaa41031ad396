package pipeline

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageCacheCheck Stage = "cache-check"
	StageRetrieve   Stage = "retrieve"
	StageGenerate   Stage = "generate"
)

var (
	ErrNoContext  = errors.New("no relevant context found")
	ErrEmptyQuery = errors.New("query is empty")
)

// QueryError is the single failure type returned by Ask. Stage tells where the query
// stopped; Err is the original cause.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query processing failed at %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func wrapStage(stage Stage, err error) error {
	return &QueryError{Stage: stage, Err: err}
}
