package repository

import (
	"strings"
	"sync"

	"github.com/jmehdipour/sms-forwarder/internal/logger"
	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"go.uber.org/zap"
)

// TokensRepository is the durable set of push destinations.
type TokensRepository interface {
	Register(token string) (int, error)
	Remove(tokens ...string) int
	Snapshot() []string
	Len() int
}

// TokensRepositoryImpl keeps registration order and rewrites its file on every mutation.
type TokensRepositoryImpl struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	tokens []string
}

var _ TokensRepository = (*TokensRepositoryImpl)(nil)

// NewTokensRepository loads path; a missing or unreadable file starts with no devices.
func NewTokensRepository(path string, log *zap.Logger) *TokensRepositoryImpl {
	r := &TokensRepositoryImpl{path: path, log: log, tokens: []string{}}

	var tokens []string
	found, err := loadJSON(path, &tokens)
	switch {
	case err != nil:
		log.Warn("push tokens file unreadable, starting fresh", zap.String("path", path), zap.Error(err))
	case !found:
		log.Info("no existing push tokens file, starting fresh", zap.String("path", path))
	default:
		// collapse duplicates a hand-edited file may carry
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, dup := seen[t]; dup || t == "" {
				continue
			}
			seen[t] = struct{}{}
			r.tokens = append(r.tokens, t)
		}
		log.Info("push tokens loaded", zap.String("path", path), zap.Int("count", len(r.tokens)))
	}

	return r
}

// Register adds token unless it is already known and returns the registry size.
func (r *TokensRepositoryImpl) Register(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return r.Len(), ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t == token {
			return len(r.tokens), nil
		}
	}

	r.tokens = append(r.tokens, token)
	r.saveLocked()
	r.log.Info("push token registered", logger.MaskToken(token))

	return len(r.tokens), nil
}

// Remove drops every given token that is present and returns how many were removed.
func (r *TokensRepositoryImpl) Remove(tokens ...string) int {
	if len(tokens) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		drop[t] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]string, 0, len(r.tokens))
	for _, t := range r.tokens {
		if _, ok := drop[t]; ok {
			continue
		}
		kept = append(kept, t)
	}

	removed := len(r.tokens) - len(kept)
	if removed == 0 {
		return 0
	}
	r.tokens = kept
	r.saveLocked()

	return removed
}

// Snapshot returns a copy the caller may index freely while the registry keeps changing.
func (r *TokensRepositoryImpl) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

func (r *TokensRepositoryImpl) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

func (r *TokensRepositoryImpl) saveLocked() {
	if err := writeJSONAtomic(r.path, r.tokens); err != nil {
		metrics.PersistFailures.WithLabelValues("tokens").Inc()
		r.log.Error("saving push tokens failed", zap.String("path", r.path), zap.Error(err))
	}
}
