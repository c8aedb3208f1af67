package chathub

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"projecthub/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RoomBus carries room broadcasts between server nodes.
type RoomBus interface {
	PublishRoomEvent(ctx context.Context, roomID string, payload []byte) error
	SubscribeToRooms(ctx context.Context) *redis.PubSub
}

// busFrame is what travels on a room channel.
type busFrame struct {
	Node  string          `json:"node"`
	Room  models.RoomKey  `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SetRoomBus enables cross-node fan-out. Call before Run.
func (m *ManagerService) SetRoomBus(bus RoomBus) {
	m.bus = bus
}

// publishRoom sends a local room broadcast to the other nodes.
func (m *ManagerService) publishRoom(room models.RoomKey, env models.Envelope) {
	if m.bus == nil {
		return
	}
	data, err := EncodeFrame(env.Data)
	if err != nil {
		log.Printf("[hub] encode %s for room %s: %v", env.Event, room, err)
		return
	}
	payload, err := EncodeFrame(busFrame{Node: m.nodeID, Room: room, Event: env.Event, Data: data})
	if err != nil {
		log.Printf("[hub] encode bus frame for room %s: %v", room, err)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	if err := m.bus.PublishRoomEvent(ctx, room.String(), payload); err != nil {
		log.Printf("[hub] publish to room %s failed: %v", room, err)
	}
}

// StartPubSubListener subscribes to every room channel and delivers frames
// published by other nodes to the local members of the room.
func (m *ManagerService) StartPubSubListener() {
	pubsub := m.bus.SubscribeToRooms(m.ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-m.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				m.handleBusMessage(msg)
			}
		}
	}()
}

func (m *ManagerService) handleBusMessage(msg *redis.Message) {
	var frame busFrame
	if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
		log.Printf("[hub] error unmarshalling frame from %s: %v", msg.Channel, err)
		return
	}
	if frame.Node == m.nodeID {
		return
	}
	if frame.Room == "" {
		frame.Room = models.RoomKey(strings.TrimPrefix(msg.Channel, "room:"))
	}
	m.Chat.deliverLocal(frame.Room, models.Envelope{Event: frame.Event, Data: frame.Data})
}
