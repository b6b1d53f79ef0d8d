package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id uuid.UUID) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

type ErrJobNotReady struct {
	error
}

func NewErrJobNotReady(id uuid.UUID) *ErrJobNotReady {
	return &ErrJobNotReady{fmt.Errorf("job %s has not produced a report yet", id)}
}

type ErrInvalidUpload struct {
	error
}

func NewErrInvalidUpload(message string) *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("bad request: %s", message)}
}
