package telegram

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"projecthub/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the mirror needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client implements chathub.Client for one Telegram chat. It only writes:
// new-message frames of the rooms it joined are rendered as plain text.
type Client struct {
	ChatID int64
	Bot    Sender
	Send   chan models.Envelope

	done chan struct{}
}

func NewClient(chatID int64, bot Sender, buffer int) *Client {
	return &Client{
		ChatID: chatID,
		Bot:    bot,
		Send:   make(chan models.Envelope, buffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) GetConnID() string                      { return "telegram:" + strconv.FormatInt(c.ChatID, 10) }
func (c *Client) GetUserID() string                      { return "" }
func (c *Client) GetSendChannel() chan<- models.Envelope { return c.Send }

// Run starts the write pump. There is no read side.
func (c *Client) Run() {
	go c.writePump()
}

// Close closes Send, which stops writePump.
func (c *Client) Close() {
	close(c.Send)
}

// Done is closed once writePump has drained Send.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) writePump() {
	defer func() {
		close(c.done)
		log.Printf("[telegram] mirror for chat %d stopped", c.ChatID)
	}()

	for env := range c.Send {
		text, ok := render(env)
		if !ok {
			continue
		}
		if _, err := c.Bot.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
			log.Printf("[telegram] failed to send to chat %d: %v", c.ChatID, err)
		}
	}
}

// mirrored is the subset of a chat message (persisted or synthesized) that
// gets rendered. Decoding through JSON covers frames from other nodes too.
type mirrored struct {
	Content   string          `json:"content"`
	AuthorID  json.RawMessage `json:"authorId"`
	ProjectID models.RoomKey  `json:"projectId"`
	Author    *struct {
		Name string `json:"name"`
	} `json:"author"`
	IsAIMessage bool `json:"isAIMessage"`
	IsError     bool `json:"isError"`
}

// render turns a new-message envelope into the text posted to Telegram.
func render(env models.Envelope) (string, bool) {
	if env.Event != models.EventNewMessage {
		return "", false
	}
	data, err := json.Marshal(env.Data)
	if err != nil {
		log.Printf("[telegram] cannot encode %s: %v", env.Event, err)
		return "", false
	}
	var msg mirrored
	if err := json.Unmarshal(data, &msg); err != nil || msg.Content == "" || msg.IsError {
		return "", false
	}

	name := ""
	if msg.Author != nil {
		name = msg.Author.Name
	}
	if name == "" {
		var id uint
		_ = json.Unmarshal(msg.AuthorID, &id)
		name = (&models.User{}).DisplayName(id)
	}
	if msg.IsAIMessage {
		name = "🤖 " + name
	}
	return fmt.Sprintf("[#%s] %s: %s", msg.ProjectID, name, msg.Content), true
}
