package chathub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"projecthub/backend/internal/ai"
	"projecthub/backend/internal/config"
	"projecthub/backend/internal/localization"
	"projecthub/backend/internal/models"
	"projecthub/backend/internal/storage"
)

const (
	CommandSummarize = "summarize"
	CommandPrompt    = "prompt"
)

var (
	ErrUnknownCommand = errors.New("unknown ai command")
	ErrEmptyPrompt    = errors.New("prompt text is empty")
)

// AIInterceptor answers ai-command events. Successful answers are broadcast to
// the room like any other message but are never persisted; failures go to the
// requesting connection only.
type AIInterceptor struct {
	storage   storage.Storage
	generator ai.Generator
	chat      *ChatRelay
	deliver   deliverFunc
	localizer *localization.Localizer

	Locale  string
	Timeout time.Duration

	now func() time.Time
}

func NewAIInterceptor(s storage.Storage, gen ai.Generator, chat *ChatRelay, deliver deliverFunc, l *localization.Localizer) *AIInterceptor {
	return &AIInterceptor{
		storage:   s,
		generator: gen,
		chat:      chat,
		deliver:   deliver,
		localizer: l,
		Locale:    config.DefaultLocale,
		Timeout:   config.DefaultAITimeout,
		now:       time.Now,
	}
}

// HandleCommand runs one command for connID in room. It blocks for the
// duration of the generation call and holds no room lock while doing so.
func (a *AIInterceptor) HandleCommand(ctx context.Context, connID string, room models.RoomKey, command, text string) error {
	reply, err := a.run(ctx, room, command, text)
	if err != nil {
		log.Printf("[ai] command %q in room %s for %s failed: %v", command, room, connID, err)
		// The requester may be gone by now; deliver drops it silently then.
		a.deliver(connID, models.Envelope{Event: models.EventNewMessage, Data: a.errorMessage(room)})
		return err
	}

	a.chat.Broadcast(room, models.Envelope{Event: models.EventNewMessage, Data: a.replyMessage(room, reply)})
	return nil
}

func (a *AIInterceptor) run(ctx context.Context, room models.RoomKey, command, text string) (string, error) {
	var prompt string
	switch strings.TrimSpace(command) {
	case CommandSummarize:
		transcript, err := a.transcript(ctx, room)
		if err != nil {
			return "", err
		}
		prompt = a.localizer.Sprintf(a.Locale, "ai.summarize_prompt", transcript)
	case CommandPrompt:
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyPrompt
		}
		prompt = text
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	if a.generator == nil {
		return "", ai.ErrNotConfigured
	}
	genCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	return a.generator.Generate(genCtx, prompt)
}

// transcript renders the room history one "author: content" line per message.
func (a *AIInterceptor) transcript(ctx context.Context, room models.RoomKey) (string, error) {
	projectID, err := room.ProjectID()
	if err != nil {
		return "", err
	}
	history, err := a.storage.ListMessagesByRoom(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Author.DisplayName(msg.AuthorID))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (a *AIInterceptor) replyMessage(room models.RoomKey, content string) models.AIMessage {
	now := a.now()
	return models.AIMessage{
		ID:          fmt.Sprintf("ai-%d", now.UnixMilli()),
		Content:     content,
		CreatedAt:   now,
		Author:      models.AuthorRef{Name: a.localizer.GetString(a.Locale, "ai.author_name")},
		AuthorID:    models.AIAuthorID,
		ProjectID:   room,
		IsAIMessage: true,
	}
}

func (a *AIInterceptor) errorMessage(room models.RoomKey) models.AIMessage {
	msg := a.replyMessage(room, a.localizer.GetString(a.Locale, "ai.error_reply"))
	msg.ID = fmt.Sprintf("ai-err-%d", msg.CreatedAt.UnixMilli())
	msg.IsError = true
	return msg
}
