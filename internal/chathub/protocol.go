package chathub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"projecthub/backend/internal/models"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Inbound commands, one type per event name. DecodeFrame only returns values
// that passed validation.
type (
	PresenceCommand struct {
		Withdraw bool
		UserID   string
	}

	RoomCommand struct {
		Leave  bool
		RoomID models.RoomKey
	}

	ChatCommand struct {
		Content   string
		AuthorID  uint
		ProjectID uint
	}

	AICommand struct {
		Command string
		RoomID  models.RoomKey
		Text    string
	}

	SignalJoinCommand struct {
		RoomID     models.RoomKey
		Descriptor json.RawMessage
	}

	SignalRelayCommand struct {
		Event   string
		Target  string
		RoomID  models.RoomKey
		Payload json.RawMessage
	}

	SignalLeaveCommand struct {
		RoomID models.RoomKey
	}
)

// DecodeFrame parses one text frame into its typed command.
func DecodeFrame(raw []byte) (any, error) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch frame.Event {
	case models.EventPresenceAnnounce, models.EventPresenceWithdraw:
		userID, err := decodeUserRef(frame.Data)
		if err != nil {
			return nil, err
		}
		return PresenceCommand{Withdraw: frame.Event == models.EventPresenceWithdraw, UserID: userID}, nil

	case models.EventRoomJoin, models.EventRoomLeave:
		room, err := decodeRoomRef(frame.Data)
		if err != nil {
			return nil, err
		}
		return RoomCommand{Leave: frame.Event == models.EventRoomLeave, RoomID: room}, nil

	case models.EventChatMessage:
		var p models.ChatMessagePayload
		if err := decodeObject(frame.Data, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Content) == "" {
			return nil, fmt.Errorf("%w: content is empty", ErrInvalidPayload)
		}
		if p.AuthorID == 0 {
			return nil, fmt.Errorf("%w: authorId is required", ErrInvalidPayload)
		}
		projectID, err := p.ProjectID.ProjectID()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return ChatCommand{Content: p.Content, AuthorID: p.AuthorID, ProjectID: projectID}, nil

	case models.EventAICommand:
		var p models.AICommandPayload
		if err := decodeObject(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.Command == "" {
			return nil, fmt.Errorf("%w: command is required", ErrInvalidPayload)
		}
		if p.ProjectID == "" {
			return nil, fmt.Errorf("%w: projectId is required", ErrInvalidPayload)
		}
		return AICommand{Command: p.Command, RoomID: p.ProjectID, Text: p.Text}, nil

	case models.EventSignalJoin:
		var p models.SignalJoinPayload
		if err := decodeObject(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.RoomID == "" {
			return nil, fmt.Errorf("%w: roomId is required", ErrInvalidPayload)
		}
		return SignalJoinCommand{RoomID: p.RoomID, Descriptor: firstPresent(p.Descriptor, p.User)}, nil

	case models.EventSignalOffer, models.EventSignalAnswer, models.EventSignalICE:
		var p models.SignalRelayPayload
		if err := decodeObject(frame.Data, &p); err != nil {
			return nil, err
		}
		if p.Target == "" {
			return nil, fmt.Errorf("%w: target is required", ErrInvalidPayload)
		}
		payload := firstPresent(p.Payload, p.SDP, p.Candidate)
		if payload == nil {
			return nil, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
		}
		return SignalRelayCommand{Event: frame.Event, Target: p.Target, RoomID: p.RoomID, Payload: payload}, nil

	case models.EventSignalLeave:
		room, err := decodeRoomRef(frame.Data)
		if err != nil {
			return nil, err
		}
		return SignalLeaveCommand{RoomID: room}, nil

	case "":
		return nil, fmt.Errorf("%w: event is required", ErrInvalidPayload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
}

func decodeObject(data json.RawMessage, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("%w: expected an object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// decodeUserRef accepts {"userId": "..."} or a bare string.
func decodeUserRef(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	var userID string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &userID); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	} else {
		var ref models.UserRef
		if err := decodeObject(data, &ref); err != nil {
			return "", err
		}
		userID = ref.UserID
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidPayload)
	}
	return userID, nil
}

// decodeRoomRef accepts {"roomId": ...} or a bare string or integer.
func decodeRoomRef(data json.RawMessage) (models.RoomKey, error) {
	data = bytes.TrimSpace(data)
	var room models.RoomKey
	if len(data) > 0 && data[0] == '{' {
		var ref models.RoomRef
		if err := decodeObject(data, &ref); err != nil {
			return "", err
		}
		room = ref.RoomID
	} else if err := json.Unmarshal(data, &room); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if room == "" {
		return "", fmt.Errorf("%w: roomId is required", ErrInvalidPayload)
	}
	return room, nil
}

// firstPresent returns the first blob that is set and not JSON null.
func firstPresent(blobs ...json.RawMessage) json.RawMessage {
	for _, b := range blobs {
		if len(b) > 0 && !bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
			return b
		}
	}
	return nil
}

// EncodeFrame marshals v for the wire without HTML escaping, so relayed
// strings such as SDP keep their characters. Raw blobs are still compacted.
func EncodeFrame(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
