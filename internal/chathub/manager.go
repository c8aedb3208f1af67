package chathub

import (
	"context"
	"log"
	"sync"
	"time"

	"projecthub/backend/internal/ai"
	"projecthub/backend/internal/config"
	"projecthub/backend/internal/localization"
	"projecthub/backend/internal/models"
	"projecthub/backend/internal/presence"
	"projecthub/backend/internal/storage"

	"github.com/google/uuid"
)

// PresenceMirror receives every presence snapshot, off the hot path.
type PresenceMirror interface {
	MirrorPresence(ctx context.Context, userIDs []string) error
}

// ManagerService owns the connection table and routes every inbound event to
// the presence registry, the chat relay, the AI interceptor or the signaling
// relay. Components hold connection ids only; delivery goes through the table.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client

	Storage  storage.Storage
	Presence *presence.Registry
	Chat     *ChatRelay
	AI       *AIInterceptor
	Signal   *SignalRelay

	Localizer *localization.Localizer
	Locale    string

	mirror   PresenceMirror
	mirrorCh chan []string
	bus      RoomBus
	nodeID   string

	ctx      context.Context
	cancel   context.CancelFunc
	trackMu  sync.Mutex
	inflight sync.WaitGroup
	done     chan struct{}
}

// NewManagerService wires the components around one connection table.
func NewManagerService(s storage.Storage, gen ai.Generator) *ManagerService {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ManagerService{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Storage:      s,
		Localizer:    localization.Default(),
		Locale:       config.DefaultLocale,
		mirrorCh:     make(chan []string, 64),
		nodeID:       uuid.New().String(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.Presence = presence.NewRegistry(m.onPresenceChange)
	m.Chat = NewChatRelay(s, m.deliver)
	m.Chat.publish = m.publishRoom
	m.Signal = NewSignalRelay(m.deliver)
	m.AI = NewAIInterceptor(s, gen, m.Chat, m.deliver, m.Localizer)
	return m
}

// SetLocale selects the language of prompts and synthesized texts.
func (m *ManagerService) SetLocale(locale string) {
	m.Locale = locale
	m.AI.Locale = locale
}

// SetLocalizer replaces the built-in translations.
func (m *ManagerService) SetLocalizer(l *localization.Localizer) {
	m.Localizer = l
	m.AI.localizer = l
}

// SetAITimeout bounds every text-generation call.
func (m *ManagerService) SetAITimeout(d time.Duration) {
	if d > 0 {
		m.AI.Timeout = d
	}
}

// SetPresenceMirror enables mirroring presence snapshots (e.g. into redis).
func (m *ManagerService) SetPresenceMirror(mirror PresenceMirror) {
	m.mirror = mirror
}

// Run processes registrations until Shutdown is called.
func (m *ManagerService) Run() {
	defer close(m.done)

	if m.mirror != nil {
		go m.runPresenceMirror()
	}
	if m.bus != nil {
		m.StartPubSubListener()
	}

	log.Println("[hub] started")
	for {
		select {
		case <-m.ctx.Done():
			m.closeAllClients()
			return
		case client := <-m.RegisterCh:
			m.Connect(client)
		case client := <-m.UnregisterCh:
			m.Disconnect(client.GetConnID())
		}
	}
}

// Register hands a new client to Run. It returns false once the hub is stopping.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// Unregister hands a finished client to Run; it never blocks after shutdown.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Connect adds the client to the table and starts it.
func (m *ManagerService) Connect(c Client) {
	if c == nil {
		log.Println("[hub] nil client registration; skipping")
		return
	}
	m.mu.Lock()
	m.clients[c.GetConnID()] = c
	total := len(m.clients)
	m.mu.Unlock()

	log.Printf("[hub] client %s connected (user %q). Total clients: %d", c.GetConnID(), c.GetUserID(), total)
	c.Run()
}

// Disconnect removes the connection and purges everything derived from it:
// presence entries, chat memberships and signaling roster entries.
func (m *ManagerService) Disconnect(connID string) {
	m.mu.Lock()
	c, ok := m.clients[connID]
	if ok {
		delete(m.clients, connID)
		c.Close()
	}
	total := len(m.clients)
	m.mu.Unlock()
	if !ok {
		return
	}

	if _, removed := m.Presence.WithdrawByConnection(connID); len(removed) > 0 {
		log.Printf("[hub] %v offline (connection %s closed)", removed, connID)
	}
	chatRooms := m.Chat.LeaveAll(connID)
	signalRooms := m.Signal.LeaveAll(connID)

	log.Printf("[hub] client %s disconnected (left %d chat, %d signaling rooms). Total clients: %d",
		connID, chatRooms, signalRooms, total)
}

// Shutdown stops Run, closes every client and waits for in-flight AI commands.
func (m *ManagerService) Shutdown(timeout time.Duration) error {
	log.Println("[hub] shutting down...")
	m.trackMu.Lock()
	m.cancel()
	m.trackMu.Unlock()
	<-m.done

	finished := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("[hub] shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("[hub] shutdown timeout reached, AI commands still running")
		return context.DeadlineExceeded
	}
}

func (m *ManagerService) closeAllClients() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
	log.Printf("[hub] closed %d client connections", len(ids))
}

// ClientCount returns the number of live connections.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// client looks up a live connection.
func (m *ManagerService) client(connID string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[connID]
	return c, ok
}

// deliver queues env for one connection. A missing connection is a routing
// miss and a full buffer drops the frame; both report false.
func (m *ManagerService) deliver(connID string, env models.Envelope) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[connID]
	if !ok {
		return false
	}
	select {
	case c.GetSendChannel() <- env:
		return true
	default:
		log.Printf("[hub] send buffer full for %s, dropping %s", connID, env.Event)
		return false
	}
}

// broadcastAll queues env for every live connection.
func (m *ManagerService) broadcastAll(env models.Envelope) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for connID, c := range m.clients {
		select {
		case c.GetSendChannel() <- env:
		default:
			log.Printf("[hub] send buffer full for %s, dropping %s", connID, env.Event)
		}
	}
}

// onPresenceChange runs under the registry lock, so snapshots leave in order.
func (m *ManagerService) onPresenceChange(snapshot []string) {
	m.broadcastAll(models.Envelope{Event: models.EventPresenceList, Data: snapshot})
	if m.mirror == nil {
		return
	}
	select {
	case m.mirrorCh <- snapshot:
	default:
		log.Println("[hub] presence mirror queue full, skipping snapshot")
	}
}

func (m *ManagerService) runPresenceMirror() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case snapshot := <-m.mirrorCh:
			ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
			if err := m.mirror.MirrorPresence(ctx, snapshot); err != nil {
				log.Printf("[hub] presence mirror failed: %v", err)
			}
			cancel()
		}
	}
}

func (m *ManagerService) sendError(connID, key string, args ...any) {
	m.deliver(connID, models.Envelope{
		Event: models.EventError,
		Data:  models.ErrorPayload{Message: m.Localizer.Sprintf(m.Locale, key, args...)},
	})
}
