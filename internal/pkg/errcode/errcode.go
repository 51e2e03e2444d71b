package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrInvalidFile
	ErrUnsupportedFile
	ErrEmptyContent
	ErrParseFailed
	ErrUploadFailed
	ErrAIUnavailable
	ErrEmbeddingFailed
	ErrPersistFailed
	ErrGenerationFailed
)
