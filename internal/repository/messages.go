package repository

import (
	"sync"

	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"github.com/jmehdipour/sms-forwarder/internal/model"
	"go.uber.org/zap"
)

// MessagesRepository is the durable, most-recent-first collection of inbound SMS.
type MessagesRepository interface {
	Append(m model.Message) model.Message
	MarkRead(id string) (model.Message, error)
	MarkReplied(id string) (model.Message, error)
	All() []model.Message
	Counts() (total, unread int)
}

// MessagesRepositoryImpl keeps the whole collection in memory and rewrites its file on every mutation.
// A failed flush is logged and the in-memory state stays authoritative.
type MessagesRepositoryImpl struct {
	path string
	log  *zap.Logger

	mu    sync.RWMutex
	items []model.Message // index 0 is the newest
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

// NewMessagesRepository loads path; a missing or unreadable file starts an empty history.
func NewMessagesRepository(path string, log *zap.Logger) *MessagesRepositoryImpl {
	r := &MessagesRepositoryImpl{path: path, log: log, items: []model.Message{}}

	var items []model.Message
	found, err := loadJSON(path, &items)
	switch {
	case err != nil:
		log.Warn("messages file unreadable, starting fresh", zap.String("path", path), zap.Error(err))
	case !found:
		log.Info("no existing messages file, starting fresh", zap.String("path", path))
	default:
		if items != nil {
			r.items = items
		}
		log.Info("messages loaded", zap.String("path", path), zap.Int("count", len(r.items)))
	}

	return r
}

// Append stores m at the head of the collection.
func (r *MessagesRepositoryImpl) Append(m model.Message) model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]model.Message, 0, len(r.items)+1)
	items = append(items, m)
	r.items = append(items, r.items...)
	r.saveLocked()

	return m
}

// MarkRead sets read on every record with id. Marking twice is harmless.
func (r *MessagesRepositoryImpl) MarkRead(id string) (model.Message, error) {
	return r.update(id, (*model.Message).MarkRead)
}

// MarkReplied sets replied (and therefore read) on every record with id.
func (r *MessagesRepositoryImpl) MarkReplied(id string) (model.Message, error) {
	return r.update(id, (*model.Message).MarkReplied)
}

func (r *MessagesRepositoryImpl) update(id string, fn func(*model.Message)) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		first model.Message
		found bool
	)
	for i := range r.items {
		if r.items[i].ID != id {
			continue
		}
		fn(&r.items[i])
		if !found {
			first = r.items[i]
			found = true
		}
	}
	if !found {
		return model.Message{}, ErrNotFound
	}

	r.saveLocked()
	return first, nil
}

// All returns a copy of the collection, newest first.
func (r *MessagesRepositoryImpl) All() []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Message, len(r.items))
	copy(out, r.items)
	return out
}

func (r *MessagesRepositoryImpl) Counts() (total, unread int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.items {
		if !m.Read {
			unread++
		}
	}
	return len(r.items), unread
}

func (r *MessagesRepositoryImpl) saveLocked() {
	if err := writeJSONAtomic(r.path, r.items); err != nil {
		metrics.PersistFailures.WithLabelValues("messages").Inc()
		r.log.Error("saving messages failed", zap.String("path", r.path), zap.Error(err))
	}
}
