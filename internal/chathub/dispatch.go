package chathub

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"projecthub/backend/internal/models"
)

// HandleFrame decodes one inbound frame from connID and routes it. Validation
// errors are reported to connID only.
func (m *ManagerService) HandleFrame(ctx context.Context, connID string, raw []byte) {
	cmd, err := DecodeFrame(raw)
	if err != nil {
		log.Printf("[hub] rejected frame from %s: %v", connID, err)
		if errors.Is(err, ErrUnknownEvent) {
			m.sendError(connID, "error.unknown_event", errDetail(err))
			return
		}
		m.sendError(connID, "error.invalid_payload", errDetail(err))
		return
	}

	switch c := cmd.(type) {
	case PresenceCommand:
		if c.Withdraw {
			m.Presence.Withdraw(c.UserID)
		} else {
			m.Presence.Announce(c.UserID, connID)
		}

	case RoomCommand:
		if c.Leave {
			m.Chat.Leave(connID, c.RoomID)
		} else {
			m.Chat.Join(connID, c.RoomID)
		}

	case ChatCommand:
		m.handleChatMessage(ctx, connID, c)

	case AICommand:
		started := m.track(func() {
			_ = m.AI.HandleCommand(context.Background(), connID, c.RoomID, c.Command, c.Text)
		})
		if !started {
			log.Printf("[hub] dropping ai-command from %s: shutting down", connID)
		}

	case SignalJoinCommand:
		m.Signal.Join(connID, c.RoomID, c.Descriptor)

	case SignalRelayCommand:
		m.Signal.Relay(c.Event, connID, c.Target, c.RoomID, c.Payload)

	case SignalLeaveCommand:
		m.Signal.Leave(connID, c.RoomID)
	}
}

func (m *ManagerService) handleChatMessage(ctx context.Context, connID string, c ChatCommand) {
	// Only numeric identities can be compared with authorId.
	if client, ok := m.client(connID); ok {
		verified := client.GetUserID()
		if id, err := strconv.ParseUint(verified, 10, 64); err == nil && uint(id) != c.AuthorID {
			log.Printf("[hub] %s (user %s) tried to post as author %d", connID, verified, c.AuthorID)
			m.sendError(connID, "error.author_mismatch")
			return
		}
	}

	_, err := m.Chat.SubmitMessage(ctx, models.ChatMessageInput{
		Content:   c.Content,
		AuthorID:  c.AuthorID,
		ProjectID: c.ProjectID,
	})
	if err != nil {
		log.Printf("[chat] message from %s dropped: %v", connID, err)
		m.deliver(connID, models.Envelope{
			Event: models.EventChatError,
			Data:  models.ErrorPayload{Message: m.Localizer.GetString(m.Locale, "chat.persist_failed")},
		})
	}
}

// track runs fn in a goroutine that Shutdown waits for. It refuses new work
// once the hub is stopping.
func (m *ManagerService) track(fn func()) bool {
	m.trackMu.Lock()
	if m.ctx.Err() != nil {
		m.trackMu.Unlock()
		return false
	}
	m.inflight.Add(1)
	m.trackMu.Unlock()

	go func() {
		defer m.inflight.Done()
		fn()
	}()
	return true
}

// errDetail strips the sentinel prefix so clients see only the cause.
func errDetail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrInvalidPayload, ErrUnknownEvent} {
		if errors.Is(err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}
