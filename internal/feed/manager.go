package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// MarketKey identifies one market instance for subscription purposes, the
// same (region, market, name) triple every result table is keyed by (spec §3).
type MarketKey struct {
	Region string `json:"region"`
	Market string `json:"market"`
	Name   string `json:"name"`
}

// Manager handles client registration, subscriptions, and message fan-out.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	bufferSize int
}

// NewManager creates a feed manager.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		clients:    make(map[uint64]*Client),
		bufferSize: bufferSize,
	}
}

// Register adds a new client wrapping conn. Returns the client for further use.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)

	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()

	log.Printf("feed: client %d connected (%s)", c.ID, conn.RemoteAddr())
	return c
}

// Unregister removes a client.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()

	c.Close()
	log.Printf("feed: client %d disconnected", c.ID)
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// StepEvent is one timetable row's clearing/settlement outcome, broadcast
// to subscribers of its (region, market, name) (spec §4.11 step 5: the
// five local tables are the authoritative per-row output).
type StepEvent struct {
	Region    string               `json:"region"`
	Market    string               `json:"market"`
	Name      string               `json:"name"`
	Timestamp time.Time            `json:"timestamp"`
	Timestep  time.Time            `json:"timestep"`
	Actions   []timetable.Action   `json:"actions"`
	Result    clearing.Result      `json:"result"`
}

// Broadcast sends a step's result to every client subscribed to its market
// instance.
func (m *Manager) Broadcast(row timetable.Row, result clearing.Result) {
	key := MarketKey{Region: row.Region, Market: row.Market, Name: row.Name}
	event := StepEvent{
		Region: row.Region, Market: row.Market, Name: row.Name,
		Timestamp: row.Timestamp, Timestep: row.Timestep,
		Actions: row.Actions, Result: result,
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("feed: encode step event: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if !c.IsSubscribed(key) {
			continue
		}
		c.Send(data)
	}
}
