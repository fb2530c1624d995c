package chat

import "github.com/pkg/errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("conversation not found")
	ErrConversationBusy = errors.New("conversation already has a session in flight")
	ErrRelay            = errors.New("relay failed")
	ErrCanceled         = errors.New("session canceled")
)

// Generic messages sent to clients on relay failure; the cause is only logged.
const (
	RelayFailureMessage = "Erreur lors de la communication avec Ollama"
	TitleFailureMessage = "Erreur génération titre"
)
