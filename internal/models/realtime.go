package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Inbound event names.
const (
	EventPresenceAnnounce = "presence-announce"
	EventPresenceWithdraw = "presence-withdraw"
	EventRoomJoin         = "room-join"
	EventRoomLeave        = "room-leave"
	EventChatMessage      = "chat-message"
	EventAICommand        = "ai-command"
	EventSignalJoin       = "signal-join"
	EventSignalOffer      = "signal-offer"
	EventSignalAnswer     = "signal-answer"
	EventSignalICE        = "signal-ice"
	EventSignalLeave      = "signal-leave"
)

// Outbound event names. The three relay events keep their inbound names.
const (
	EventPresenceList     = "presence-list"
	EventNewMessage       = "new-message"
	EventChatError        = "chat-error"
	EventError            = "error"
	EventSignalAllUsers   = "signal-all-users"
	EventSignalUserJoined = "signal-user-joined"
	EventSignalUserLeft   = "signal-user-left"
)

// Envelope is one outbound frame: {"event": ..., "data": ...}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundFrame is one inbound frame before its payload is decoded.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomKey identifies a chat or signaling room. Clients send it either as a JSON
// string or as a JSON integer; both normalize to the decimal string.
type RoomKey string

func (k *RoomKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = RoomKey(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("room key must be a string or an integer: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("room key must be an integer: %s", n)
	}
	*k = RoomKey(n.String())
	return nil
}

func (k RoomKey) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseUint(string(k), 10, 64); err == nil && strconv.FormatUint(n, 10) == string(k) {
		return []byte(k), nil
	}
	return json.Marshal(string(k))
}

func (k RoomKey) String() string { return string(k) }

// ProjectID converts the key to the numeric project id used by persistence.
func (k RoomKey) ProjectID() (uint, error) {
	n, err := strconv.ParseUint(string(k), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("room %q is not a project id", string(k))
	}
	return uint(n), nil
}

// RoomKeyFromProject is the inverse of ProjectID.
func RoomKeyFromProject(id uint) RoomKey {
	return RoomKey(strconv.FormatUint(uint64(id), 10))
}

// Inbound payloads.

type UserRef struct {
	UserID string `json:"userId"`
}

type RoomRef struct {
	RoomID RoomKey `json:"roomId"`
}

type ChatMessagePayload struct {
	Content   string  `json:"content"`
	AuthorID  uint    `json:"authorId"`
	ProjectID RoomKey `json:"projectId"`
}

type AICommandPayload struct {
	Command   string  `json:"command"`
	ProjectID RoomKey `json:"projectId"`
	Text      string  `json:"text,omitempty"`
}

type SignalJoinPayload struct {
	RoomID     RoomKey         `json:"roomId"`
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
	// User is the legacy name of Descriptor.
	User json.RawMessage `json:"user,omitempty"`
}

type SignalRelayPayload struct {
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    string          `json:"from,omitempty"`
	RoomID  RoomKey         `json:"roomId"`
	// Legacy blob fields, used when Payload is absent.
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Outbound payloads.

// Participant is one signaling roster entry.
type Participant struct {
	ConnectionID string          `json:"connectionId"`
	Descriptor   json.RawMessage `json:"descriptor,omitempty"`
}

type SignalRoster struct {
	Users []Participant `json:"users"`
}

type SignalRelay struct {
	From    string          `json:"from"`
	RoomID  RoomKey         `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
