package event

import (
	"sync"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"go.uber.org/zap"
)

// MessageType tags a hub message
type MessageType string

const (
	MessageStatus MessageType = "status"
	MessageLog    MessageType = "log"
)

// Message is one hub broadcast: a status snapshot or a single log line
type Message struct {
	Type      MessageType                `json:"type"`
	ProjectID *uuid.UUID                 `json:"project_id,omitempty"`
	Status    *migration.MigrationStatus `json:"status,omitempty"`
	Line      string                     `json:"line,omitempty"`
}

const defaultBufferSize = 64

type subscriber struct {
	project *uuid.UUID // nil receives every project
	ch      chan Message
}

func (s *subscriber) wants(projectID *uuid.UUID) bool {
	return s.project == nil || (projectID != nil && *projectID == *s.project)
}

// StatusHub keeps the latest migration status and fans changes out to
// subscribers. Sends never block; a full subscriber buffer drops the message.
type StatusHub struct {
	mu         sync.RWMutex
	last       migration.MigrationStatus
	subs       map[uint64]*subscriber
	nextID     uint64
	bufferSize int
	logger     *zap.Logger
}

// HubOption configures a StatusHub
type HubOption func(*StatusHub)

// WithBufferSize sets the per-subscriber buffer
func WithBufferSize(n int) HubOption {
	return func(h *StatusHub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithHubLogger sets the logger
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *StatusHub) {
		h.logger = logger
	}
}

// NewStatusHub creates a hub holding the idle status
func NewStatusHub(opts ...HubOption) *StatusHub {
	h := &StatusHub{
		last:       migration.IdleStatus(),
		subs:       make(map[uint64]*subscriber),
		bufferSize: defaultBufferSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Current returns a snapshot of the latest status
func (h *StatusHub) Current() migration.MigrationStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last.Snapshot()
}

// Subscribe registers a listener. A nil projectID receives every project.
// The current status is queued first; for a filtered subscriber whose
// project is not the one last seen, an idle status is queued instead.
// The returned cancel closes the channel and is safe to call twice.
func (h *StatusHub) Subscribe(projectID *uuid.UUID) (<-chan Message, func()) {
	s := &subscriber{ch: make(chan Message, h.bufferSize)}
	if projectID != nil {
		id := *projectID
		s.project = &id
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	initial := h.last.Snapshot()
	if !s.wants(initial.ProjectID) {
		initial = migration.IdleStatus()
	}
	s.ch <- Message{Type: MessageStatus, ProjectID: initial.ProjectID, Status: &initial}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(s.ch)
			h.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// PublishStatus stores status and broadcasts a snapshot
func (h *StatusHub) PublishStatus(status migration.MigrationStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = status.Snapshot()
	for _, s := range h.subs {
		if !s.wants(status.ProjectID) {
			continue
		}
		snap := status.Snapshot()
		h.send(s, Message{Type: MessageStatus, ProjectID: snap.ProjectID, Status: &snap})
	}
}

// PublishLog broadcasts one log line of projectID's run
func (h *StatusHub) PublishLog(projectID uuid.UUID, line string) {
	pid := projectID
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.wants(&pid) {
			h.send(s, Message{Type: MessageLog, ProjectID: &pid, Line: line})
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (h *StatusHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *StatusHub) send(s *subscriber, msg Message) {
	select {
	case s.ch <- msg:
	default:
		h.logger.Debug("Subscriber buffer full, dropping message", zap.String("type", string(msg.Type)))
	}
}
