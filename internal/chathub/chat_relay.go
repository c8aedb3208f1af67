package chathub

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"projecthub/backend/internal/models"
	"projecthub/backend/internal/storage"
)

// deliverFunc queues one frame for one connection and reports whether it was queued.
type deliverFunc func(connID string, env models.Envelope) bool

type chatRoom struct {
	mu      sync.Mutex
	members map[string]struct{}
}

// ChatRelay keeps the implicit membership of every chat room and fans
// persisted messages out to it. Each room has its own lock; the table lock is
// only held long enough to find (or prune) a room.
type ChatRelay struct {
	mu     sync.Mutex
	rooms  map[models.RoomKey]*chatRoom
	joined map[string]map[models.RoomKey]struct{}

	storage storage.Storage
	deliver deliverFunc

	// publish forwards a local broadcast to the other nodes. Optional.
	publish func(room models.RoomKey, env models.Envelope)

	seqMu sync.Mutex
	seqs  map[models.RoomKey]*submitSeq
}

// submitSeq serializes persist-then-broadcast for one room.
type submitSeq struct {
	mu   sync.Mutex
	refs int
}

func NewChatRelay(s storage.Storage, deliver deliverFunc) *ChatRelay {
	return &ChatRelay{
		rooms:   make(map[models.RoomKey]*chatRoom),
		joined:  make(map[string]map[models.RoomKey]struct{}),
		seqs:    make(map[models.RoomKey]*submitSeq),
		storage: s,
		deliver: deliver,
	}
}

// Join adds connID to room. Joining twice is a no-op.
func (r *ChatRelay) Join(connID string, room models.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.rooms[room]
	if !ok {
		cr = &chatRoom{members: make(map[string]struct{})}
		r.rooms[room] = cr
	}
	cr.mu.Lock()
	cr.members[connID] = struct{}{}
	cr.mu.Unlock()

	if r.joined[connID] == nil {
		r.joined[connID] = make(map[models.RoomKey]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

// Leave removes connID from room. Leaving a room it is not in is a no-op.
func (r *ChatRelay) Leave(connID string, room models.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes connID from every room it joined and returns how many.
func (r *ChatRelay) LeaveAll(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.joined[connID]
	for room := range rooms {
		r.leaveLocked(connID, room)
	}
	return len(rooms)
}

func (r *ChatRelay) leaveLocked(connID string, room models.RoomKey) {
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}

	cr, ok := r.rooms[room]
	if !ok {
		return
	}
	cr.mu.Lock()
	delete(cr.members, connID)
	if len(cr.members) == 0 {
		delete(r.rooms, room)
	}
	cr.mu.Unlock()
}

// Members returns the connections joined to room, sorted.
func (r *ChatRelay) Members(room models.RoomKey) []string {
	cr := r.lockRoom(room)
	if cr == nil {
		return nil
	}
	defer cr.mu.Unlock()

	ids := make([]string, 0, len(cr.members))
	for id := range cr.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubmitMessage persists an authored message and, once stored, broadcasts it
// to the room it belongs to, sender included. Nothing is broadcast when
// persistence fails; the error is returned for the caller to report.
// Submissions to one room are serialized, so members receive messages in the
// order they were stored.
func (r *ChatRelay) SubmitMessage(ctx context.Context, input models.ChatMessageInput) (*models.ChatMessage, error) {
	room := models.RoomKeyFromProject(input.ProjectID)
	seq := r.acquireSeq(room)
	defer r.releaseSeq(room, seq)

	msg, err := r.storage.CreateMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("persist message for project %d: %w", input.ProjectID, err)
	}
	r.Broadcast(room, models.Envelope{Event: models.EventNewMessage, Data: msg})
	return msg, nil
}

func (r *ChatRelay) acquireSeq(room models.RoomKey) *submitSeq {
	r.seqMu.Lock()
	seq, ok := r.seqs[room]
	if !ok {
		seq = &submitSeq{}
		r.seqs[room] = seq
	}
	seq.refs++
	r.seqMu.Unlock()

	seq.mu.Lock()
	return seq
}

func (r *ChatRelay) releaseSeq(room models.RoomKey, seq *submitSeq) {
	seq.mu.Unlock()

	r.seqMu.Lock()
	seq.refs--
	if seq.refs == 0 {
		delete(r.seqs, room)
	}
	r.seqMu.Unlock()
}

// Broadcast delivers env to every local member of room and then hands it to
// the cross-node publisher, if any.
func (r *ChatRelay) Broadcast(room models.RoomKey, env models.Envelope) int {
	n := r.deliverLocal(room, env)
	if r.publish != nil {
		r.publish(room, env)
	}
	return n
}

// deliverLocal delivers env to the members of room known to this node.
func (r *ChatRelay) deliverLocal(room models.RoomKey, env models.Envelope) int {
	cr := r.lockRoom(room)
	if cr == nil {
		return 0
	}
	defer cr.mu.Unlock()

	delivered := 0
	for connID := range cr.members {
		if r.deliver(connID, env) {
			delivered++
		}
	}
	if delivered < len(cr.members) {
		log.Printf("[chat] %s to room %s reached %d of %d members", env.Event, room, delivered, len(cr.members))
	}
	return delivered
}

// lockRoom returns room locked, or nil when nobody is in it.
func (r *ChatRelay) lockRoom(room models.RoomKey) *chatRoom {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.rooms[room]
	if !ok {
		return nil
	}
	cr.mu.Lock()
	return cr
}
