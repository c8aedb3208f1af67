package chathub

import (
	"encoding/json"
	"log"
	"sync"

	"projecthub/backend/internal/models"
)

type signalRoom struct {
	mu           sync.Mutex
	participants []models.Participant
}

func (r *signalRoom) indexOf(connID string) int {
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// SignalRelay keeps one ordered roster per signaling room and passes
// handshake blobs between its participants without looking into them.
type SignalRelay struct {
	mu     sync.Mutex
	rooms  map[models.RoomKey]*signalRoom
	joined map[string]map[models.RoomKey]struct{}

	deliver deliverFunc
}

func NewSignalRelay(deliver deliverFunc) *SignalRelay {
	return &SignalRelay{
		rooms:   make(map[models.RoomKey]*signalRoom),
		joined:  make(map[string]map[models.RoomKey]struct{}),
		deliver: deliver,
	}
}

// Join adds connID to room. The joiner first receives the roster without
// itself, then is appended, then every earlier participant is told about it.
// All three steps run under the room lock.
//
// A connection that is already a participant gets the roster again and its
// descriptor replaced; the other participants are not notified twice.
func (s *SignalRelay) Join(connID string, room models.RoomKey, descriptor json.RawMessage) {
	s.mu.Lock()
	sr, ok := s.rooms[room]
	if !ok {
		sr = &signalRoom{}
		s.rooms[room] = sr
	}
	if s.joined[connID] == nil {
		s.joined[connID] = make(map[models.RoomKey]struct{})
	}
	s.joined[connID][room] = struct{}{}
	sr.mu.Lock()
	s.mu.Unlock()
	defer sr.mu.Unlock()

	existing := sr.indexOf(connID)
	others := make([]models.Participant, 0, len(sr.participants))
	for _, p := range sr.participants {
		if p.ConnectionID != connID {
			others = append(others, p)
		}
	}

	s.deliver(connID, models.Envelope{
		Event: models.EventSignalAllUsers,
		Data:  models.SignalRoster{Users: others},
	})

	joiner := models.Participant{ConnectionID: connID, Descriptor: descriptor}
	if existing >= 0 {
		sr.participants[existing] = joiner
		return
	}
	sr.participants = append(sr.participants, joiner)

	for _, p := range others {
		s.deliver(p.ConnectionID, models.Envelope{Event: models.EventSignalUserJoined, Data: joiner})
	}
	log.Printf("[signal] %s joined room %s (%d participants)", connID, room, len(sr.participants))
}

// Relay forwards payload from one connection to target only. A target that no
// longer exists is dropped without telling the sender.
func (s *SignalRelay) Relay(event, from, target string, room models.RoomKey, payload json.RawMessage) bool {
	return s.deliver(target, models.Envelope{
		Event: event,
		Data:  models.SignalRelay{From: from, RoomID: room, Payload: payload},
	})
}

// Leave removes connID from room and tells every remaining participant.
// It reports false when connID was not in the room.
func (s *SignalRelay) Leave(connID string, room models.RoomKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaveLocked(connID, room)
}

// LeaveAll runs Leave for every room connID joined and returns how many it left.
func (s *SignalRelay) LeaveAll(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	left := 0
	for room := range s.joined[connID] {
		if s.leaveLocked(connID, room) {
			left++
		}
	}
	return left
}

func (s *SignalRelay) leaveLocked(connID string, room models.RoomKey) bool {
	if rooms, ok := s.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(s.joined, connID)
		}
	}

	sr, ok := s.rooms[room]
	if !ok {
		return false
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()

	i := sr.indexOf(connID)
	if i < 0 {
		return false
	}
	sr.participants = append(sr.participants[:i], sr.participants[i+1:]...)
	if len(sr.participants) == 0 {
		delete(s.rooms, room)
	}

	left := models.Participant{ConnectionID: connID}
	for _, p := range sr.participants {
		s.deliver(p.ConnectionID, models.Envelope{Event: models.EventSignalUserLeft, Data: left})
	}
	log.Printf("[signal] %s left room %s (%d participants)", connID, room, len(sr.participants))
	return true
}

// Participants returns a copy of room's roster in join order.
func (s *SignalRelay) Participants(room models.RoomKey) []models.Participant {
	s.mu.Lock()
	sr, ok := s.rooms[room]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	sr.mu.Lock()
	s.mu.Unlock()
	defer sr.mu.Unlock()

	return append([]models.Participant(nil), sr.participants...)
}
