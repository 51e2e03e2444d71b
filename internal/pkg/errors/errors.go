package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrUnavailable  = errors.New("ai not configured")
	ErrParse        = errors.New("parse failed")
	ErrEmbedding    = errors.New("embedding failed")
	ErrPersistence  = errors.New("persistence failed")
	ErrGeneration   = errors.New("generation failed")

	// ErrUnsupportedFormat is a validation error: errors.Is(err, ErrInvalid) holds.
	ErrUnsupportedFormat = fmt.Errorf("unsupported format: %w", ErrInvalid)
	ErrEmptyContent      = fmt.Errorf("empty content: %w", ErrInvalid)
)

type Stage string

const (
	StageValidate      Stage = "validate"
	StageStoreOriginal Stage = "store_original"
	StageLoad          Stage = "load"
	StageChunk         Stage = "chunk"
	StageEmbed         Stage = "embed"
	StagePersist       Stage = "persist"
	StageRetrieve      Stage = "retrieve"
	StageGenerate      Stage = "generate"
)

// StageError records which pipeline stage failed and for which subject
// (a doc_id on ingestion, the question on query). It matches both Kind and
// the underlying cause under errors.Is.
type StageError struct {
	Stage   Stage
	Subject string
	Kind    error
	Err     error
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func Wrap(stage Stage, subject string, kind error, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Subject: subject, Kind: kind, Err: err}
}

func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// PublicMessage renders err for API clients: a short kind description,
// prefixed with the failing stage when known. Causes from providers or the
// database are left out; validation detail is kept since it only echoes
// request fields.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var msg string
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		msg = "unsupported file format"
	case errors.Is(err, ErrEmptyContent):
		msg = "document has no extractable text"
	case errors.Is(err, ErrInvalid):
		msg = invalidDetail(err)
	case errors.Is(err, ErrNotFound):
		msg = "not found"
	case errors.Is(err, ErrParse):
		msg = "document could not be parsed"
	case errors.Is(err, ErrUnavailable):
		msg = "ai provider not configured"
	case errors.Is(err, ErrGeneration):
		msg = "answer generation failed"
	case errors.Is(err, ErrEmbedding):
		msg = "embedding failed"
	case errors.Is(err, ErrPersistence):
		msg = "storage failed"
	default:
		msg = "internal error"
	}
	if stage, ok := StageOf(err); ok {
		msg = string(stage) + ": " + msg
	}
	return msg
}

func invalidDetail(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
