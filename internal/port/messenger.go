package port

import "context"

// Messenger abstracts the chat platform used to relay results back to users.
type Messenger interface {
	// SendText sends a plain text message to a recipient.
	SendText(ctx context.Context, recipientID, text string) error

	// SendImage sends an image attachment by URL to a recipient.
	SendImage(ctx context.Context, recipientID, imageURL string) error
}
