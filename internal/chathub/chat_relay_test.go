package chathub_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type deliveryLog struct {
	mu   sync.Mutex
	sent map[string][]models.Envelope
}

func (d *deliveryLog) deliver(connID string, env models.Envelope) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sent == nil {
		d.sent = make(map[string][]models.Envelope)
	}
	d.sent[connID] = append(d.sent[connID], env)
	return true
}

func (d *deliveryLog) count(connID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent[connID])
}

func TestChatRelay_JoinLeaveIdempotent(t *testing.T) {
	relay := chathub.NewChatRelay(new(MockStorage), (&deliveryLog{}).deliver)

	relay.Join("c1", "42")
	relay.Join("c1", "42")
	relay.Join("c2", "42")
	assert.Equal(t, []string{"c1", "c2"}, relay.Members("42"))

	relay.Leave("c1", "42")
	relay.Leave("c1", "42")
	relay.Leave("c3", "42")
	assert.Equal(t, []string{"c2"}, relay.Members("42"))

	relay.Leave("c2", "42")
	assert.Nil(t, relay.Members("42"))
}

func TestChatRelay_LeaveAll(t *testing.T) {
	relay := chathub.NewChatRelay(new(MockStorage), (&deliveryLog{}).deliver)
	relay.Join("c1", "1")
	relay.Join("c1", "2")
	relay.Join("c1", "3")
	relay.Join("c2", "2")

	assert.Equal(t, 3, relay.LeaveAll("c1"))
	assert.Equal(t, 0, relay.LeaveAll("c1"))
	assert.Nil(t, relay.Members("1"))
	assert.Equal(t, []string{"c2"}, relay.Members("2"))
}

func TestChatRelay_SubmitMessage(t *testing.T) {
	s := new(MockStorage)
	log := &deliveryLog{}
	relay := chathub.NewChatRelay(s, log.deliver)
	relay.Join("c1", "42")
	relay.Join("c2", "42")
	relay.Join("c3", "7")

	input := models.ChatMessageInput{Content: "hi", AuthorID: 7, ProjectID: 42}
	stored := &models.ChatMessage{ID: 1, Content: "hi", AuthorID: 7, ProjectID: 42}
	s.On("CreateMessage", mock.Anything, input).Return(stored, nil).Once()

	msg, err := relay.SubmitMessage(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, stored, msg)

	assert.Equal(t, 1, log.count("c1"))
	assert.Equal(t, 1, log.count("c2"))
	assert.Equal(t, 0, log.count("c3"))
	assert.Equal(t, stored, log.sent["c1"][0].Data)
}

func TestChatRelay_SubmitMessagePersistFailure(t *testing.T) {
	s := new(MockStorage)
	log := &deliveryLog{}
	relay := chathub.NewChatRelay(s, log.deliver)
	relay.Join("c1", "42")

	dbErr := errors.New("constraint violation")
	s.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, dbErr)

	msg, err := relay.SubmitMessage(context.Background(), models.ChatMessageInput{Content: "x", AuthorID: 1, ProjectID: 42})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, 0, log.count("c1"))
}

func TestChatRelay_SubmissionsToOneRoomKeepStoredOrder(t *testing.T) {
	s := new(MockStorage)
	log := &deliveryLog{}
	relay := chathub.NewChatRelay(s, log.deliver)
	relay.Join("c1", "42")
	relay.Join("c2", "7")

	first := models.ChatMessageInput{Content: "first", AuthorID: 1, ProjectID: 42}
	second := models.ChatMessageInput{Content: "second", AuthorID: 2, ProjectID: 42}
	other := models.ChatMessageInput{Content: "elsewhere", AuthorID: 3, ProjectID: 7}
	storedFirst := &models.ChatMessage{ID: 1, Content: "first", AuthorID: 1, ProjectID: 42}
	storedSecond := &models.ChatMessage{ID: 2, Content: "second", AuthorID: 2, ProjectID: 42}

	entered := make(chan string, 2)
	release := make(chan struct{})
	s.On("CreateMessage", mock.Anything, first).
		Run(func(mock.Arguments) { entered <- "first"; <-release }).
		Return(storedFirst, nil)
	s.On("CreateMessage", mock.Anything, second).
		Run(func(mock.Arguments) { entered <- "second" }).
		Return(storedSecond, nil)
	s.On("CreateMessage", mock.Anything, other).
		Return(&models.ChatMessage{ID: 3, Content: "elsewhere", AuthorID: 3, ProjectID: 7}, nil)

	var wg sync.WaitGroup
	submit := func(input models.ChatMessageInput) {
		defer wg.Done()
		_, err := relay.SubmitMessage(context.Background(), input)
		assert.NoError(t, err)
	}

	wg.Add(1)
	go submit(first)
	require.Equal(t, "first", <-entered)

	// Other rooms are not held up.
	_, err := relay.SubmitMessage(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 1, log.count("c2"))

	wg.Add(1)
	go submit(second)
	select {
	case got := <-entered:
		t.Fatalf("%s was stored while first was still being stored", got)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.sent["c1"], 2)
	assert.Equal(t, storedFirst, log.sent["c1"][0].Data)
	assert.Equal(t, storedSecond, log.sent["c1"][1].Data)
}

func TestChatRelay_ConcurrentMembership(t *testing.T) {
	log := &deliveryLog{}
	relay := chathub.NewChatRelay(new(MockStorage), log.deliver)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			room := models.RoomKey(fmt.Sprint(i % 3))
			relay.Join(conn, room)
			relay.Broadcast(room, models.Envelope{Event: models.EventNewMessage})
			if i%2 == 0 {
				relay.LeaveAll(conn)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, room := range []models.RoomKey{"0", "1", "2"} {
		total += len(relay.Members(room))
	}
	assert.Equal(t, 25, total)
}
