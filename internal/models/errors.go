package models

import "errors"

// Error taxonomy. Callers wrap these with context and test with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrSchema             = errors.New("schema error")
	ErrEmptyDataset       = errors.New("empty dataset")
	ErrEmptySelection     = errors.New("empty selection")
	ErrUnknownCombination = errors.New("unknown combination")
)
