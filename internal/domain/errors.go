package domain

import "errors"

var (
	// ErrQuestionNotFound is returned when a question ID does not exist in the store.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrParticipantNotFound is returned when a participant ID does not exist in the store.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrEmptyUpdate rejects partial updates that carry no fields.
	ErrEmptyUpdate = errors.New("no fields to update")
	// ErrUnknownField rejects partial updates that touch a field outside the allow-list.
	ErrUnknownField = errors.New("field is not updatable")
	// ErrUnknownBatchAction is returned for unsupported /questions/batch actions.
	ErrUnknownBatchAction = errors.New("unknown batch action")
	// ErrInvalidSection indicates a section outside C, Python, Other and Common.
	ErrInvalidSection = errors.New("invalid section")
	// ErrUnknownQuestionType indicates a missing or unsupported question type discriminant.
	ErrUnknownQuestionType = errors.New("unknown question type")
	// ErrAlreadySubmitted protects participants from mutation after their final submission.
	ErrAlreadySubmitted = errors.New("participant already submitted")
	// ErrRegistrationClosed is returned while the event does not accept new participants.
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
