package common

import (
	"time"

	"github.com/oklog/ulid/v2"
)

func NewULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewConversationID returns a sortable conversation id such as conv_01HV...
func NewConversationID() (string, error) {
	id, err := NewULID()
	if err != nil {
		return "", err
	}
	return "conv_" + id, nil
}
