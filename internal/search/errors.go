package search

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreRequired is returned by New when no corpus store is given.
	ErrStoreRequired = errors.New("corpus store required")

	// ErrInvalidOption is returned by New when an option value is out of range.
	ErrInvalidOption = errors.New("invalid engine option")

	// ErrValidation marks input rejected before any store access.
	ErrValidation = errors.New("invalid search input")

	// ErrRetrieval marks a failure reported by the corpus store.
	ErrRetrieval = errors.New("retrieval failed")
)

type Stage string

const (
	StageValidate   Stage = "validate"
	StageCandidates Stage = "candidates"
	StageRank       Stage = "rank"
	StageSnippets   Stage = "snippets"
	StageRecall     Stage = "recall"
	StageNearest    Stage = "nearest"
	StageHydrate    Stage = "hydrate"
)

// Error reports which operation and stage failed and for which query. Both Kind
// and the underlying cause match with errors.Is.
type Error struct {
	Op    string
	Stage Stage
	Query string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("search %s: %s stage (query %q): %v", e.Op, e.Stage, e.Query, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func invalid(op, query, format string, args ...any) *Error {
	return &Error{Op: op, Stage: StageValidate, Query: query, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

func retrieval(op string, stage Stage, query string, err error) *Error {
	return &Error{Op: op, Stage: stage, Query: query, Kind: ErrRetrieval, Err: err}
}
