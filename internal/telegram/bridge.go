// Package telegram mirrors chat rooms into Telegram chats.
package telegram

import (
	"log"
	"sort"

	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBot authorizes against the Bot API.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("[telegram] authorized on account %s", bot.Self.UserName)
	return bot, nil
}

// Attach registers one mirror client per Telegram chat with hub and joins it
// to every room bridged to that chat. Call after hub.Run has started.
func Attach(hub *chathub.ManagerService, bot Sender, bridges map[string]int64, buffer int) []*Client {
	rooms := make(map[int64][]string)
	for room, chatID := range bridges {
		rooms[chatID] = append(rooms[chatID], room)
	}

	chatIDs := make([]int64, 0, len(rooms))
	for chatID := range rooms {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })

	var clients []*Client
	for _, chatID := range chatIDs {
		client := NewClient(chatID, bot, buffer)
		if !hub.Register(client) {
			log.Printf("[telegram] hub is stopping, chat %d not mirrored", chatID)
			break
		}
		for _, room := range rooms[chatID] {
			hub.Chat.Join(client.GetConnID(), models.RoomKey(room))
		}
		log.Printf("[telegram] chat %d mirrors rooms %v", chatID, rooms[chatID])
		clients = append(clients, client)
	}
	return clients
}
