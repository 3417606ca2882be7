package messaging

import (
	"context"
	"errors"
)

// ErrSendFailed marks a delivery the platform did not accept.
var ErrSendFailed = errors.New("message delivery failed")

// Sink delivers a message to the patient side of a contract.
// This decouples reconciliation from the platform transport.
type Sink interface {
	// Send pushes text to the contract and attaches infoMaterials when it is not empty.
	// Any returned error means the message must be considered undelivered.
	Send(ctx context.Context, contractID int64, text string, infoMaterials string) error
}
