// Package stream рассылает результаты анализа подписчикам по websocket
package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"drowsiness-service/internal/models"
)

type message struct {
	sessionID string
	data      []byte
}

// Hub хранит подключенных клиентов и рассылает им результаты
type Hub struct {
	log *logrus.Logger

	// Владелец clients - горутина Run
	clients map[*Client]bool

	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

// NewHub создает hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		log:        logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run основной цикл hub, запускается в отдельной горутине
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.setCount(0)
		close(h.done)
	}()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.log.WithFields(logrus.Fields{
				"session_id": client.sessionID,
				"clients":    len(h.clients),
			}).Debug("[stream.Run] client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.setCount(len(h.clients))

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(msg.sessionID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Клиент не успевает читать, отключаем
					close(client.send)
					delete(h.clients, client)
					h.log.WithField("session_id", client.sessionID).Warn("[stream.Run] dropped slow client")
				}
			}
			h.setCount(len(h.clients))

		case <-ctx.Done():
			return
		}
	}
}

// Publish отправляет результат подписчикам сессии и общим подписчикам
func (h *Hub) Publish(result models.FrameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message{sessionID: result.SessionID, data: data}:
	default:
		h.log.Warn("[stream.Publish] broadcast channel full, dropping result")
	}
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
