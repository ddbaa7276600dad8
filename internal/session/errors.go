package session

import (
	"errors"

	"github.com/abhisek/anamnesis/internal/patient"
)

var (
	// ErrUnauthorized is returned when the actor is not the chat's doctor.
	ErrUnauthorized = errors.New("not authorized for this chat")

	// ErrAlreadyFinished is returned when a game has already been scored,
	// or another end-game request holds the evaluation.
	ErrAlreadyFinished = errors.New("game already finished")

	// ErrNotFound is returned for unknown chats.
	ErrNotFound = errors.New("chat not found")

	// ErrInvalidDifficulty is returned for difficulties other than easy,
	// medium or hard.
	ErrInvalidDifficulty = patient.ErrInvalidDifficulty

	// ErrEmptyMessage is returned for blank messages and blank answers.
	ErrEmptyMessage = errors.New("message is empty")
)
