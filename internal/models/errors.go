package models

import "errors"

var (
	// ErrEmptyQuestion is returned when a question is blank after trimming.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrCorpusFormat indicates a malformed verse corpus file.
	ErrCorpusFormat = errors.New("invalid corpus format")

	// ErrMissingAPIKey indicates the configured provider needs credentials that were not supplied.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmbedding wraps failures of the external embedding service.
	ErrEmbedding = errors.New("embedding error")

	// ErrGeneration wraps failures of the external chat-completion service.
	ErrGeneration = errors.New("generation error")

	// ErrRebuildInProgress is returned when a second rebuild is requested while one runs.
	ErrRebuildInProgress = errors.New("index rebuild in progress")

	// ErrNoCollection indicates the vector index collection has not been opened.
	ErrNoCollection = errors.New("collection is required")
)
