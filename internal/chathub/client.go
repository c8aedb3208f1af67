package chathub

import "projecthub/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly. The hub refers to clients by connection id only.
type Client interface {
	// GetConnID returns the opaque identifier of this connection.
	GetConnID() string
	// GetUserID returns the identity verified by the auth gate, or "" when the
	// connection is unauthenticated.
	GetUserID() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// frames intended for this specific client. Sends are never blocking; a full
	// channel drops the frame.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's pumps. Called by the hub once the client is registered.
	Run()
	// Close shuts down the client's send side. Called exactly once, by the hub.
	Close()
}
