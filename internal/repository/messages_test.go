package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sms(id string) model.Message {
	return model.Message{
		ID:        id,
		Type:      model.MessageTypeSMS,
		From:      "+15551234567",
		To:        "+15550000000",
		Body:      "body of " + id,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newMessages(t *testing.T) (*MessagesRepositoryImpl, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	return NewMessagesRepository(path, zap.NewNop()), path
}

func TestMessagesAppendNewestFirst(t *testing.T) {
	repo, _ := newMessages(t)

	for i := 1; i <= 5; i++ {
		repo.Append(sms(fmt.Sprintf("SM%d", i)))
	}

	all := repo.All()
	require.Len(t, all, 5)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("SM%d", 5-i), m.ID)
	}
}

func TestMessagesAllIsSnapshot(t *testing.T) {
	repo, _ := newMessages(t)
	repo.Append(sms("SM1"))

	snap := repo.All()
	snap[0].Read = true
	repo.Append(sms("SM2"))

	assert.Len(t, snap, 1)
	total, unread := repo.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, unread)
}

func TestMessagesMarkReadAndReplied(t *testing.T) {
	repo, _ := newMessages(t)
	repo.Append(sms("SM1"))
	repo.Append(sms("SM2"))

	m, err := repo.MarkRead("SM1")
	require.NoError(t, err)
	assert.True(t, m.Read)
	assert.False(t, m.Replied)

	// idempotent
	m, err = repo.MarkRead("SM1")
	require.NoError(t, err)
	assert.True(t, m.Read)

	m, err = repo.MarkReplied("SM1")
	require.NoError(t, err)
	assert.True(t, m.Read)
	assert.True(t, m.Replied)

	m, err = repo.MarkReplied("SM2")
	require.NoError(t, err)
	assert.True(t, m.Read, "replied implies read")
	assert.True(t, m.Replied)

	total, unread := repo.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, unread)
}

func TestMessagesMarkUnknownID(t *testing.T) {
	repo, _ := newMessages(t)
	repo.Append(sms("SM1"))
	before := repo.All()

	_, err := repo.MarkRead("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.MarkReplied("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, repo.All())
	total, unread := repo.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, unread)
}

func TestMessagesDuplicateIDsStayConsistent(t *testing.T) {
	repo, _ := newMessages(t)
	repo.Append(sms("SM1"))
	repo.Append(sms("SM1"))

	_, err := repo.MarkRead("SM1")
	require.NoError(t, err)

	total, unread := repo.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, unread)
}

func TestMessagesSurviveRestart(t *testing.T) {
	repo, path := newMessages(t)
	repo.Append(sms("SM1"))
	repo.Append(sms("SM2"))
	_, err := repo.MarkReplied("SM1")
	require.NoError(t, err)

	reopened := NewMessagesRepository(path, zap.NewNop())
	all := reopened.All()
	require.Len(t, all, 2)
	assert.Equal(t, "SM2", all[0].ID)
	assert.Equal(t, "SM1", all[1].ID)
	assert.True(t, all[1].Replied)
	assert.True(t, all[1].Read)
	assert.True(t, all[0].Timestamp.Equal(sms("SM2").Timestamp))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMessagesCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	repo := NewMessagesRepository(path, zap.NewNop())
	assert.Empty(t, repo.All())

	repo.Append(sms("SM1"))
	reopened := NewMessagesRepository(path, zap.NewNop())
	assert.Len(t, reopened.All(), 1)
}

func TestMessagesPersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	core, logs := observer.New(zapcore.ErrorLevel)
	repo := NewMessagesRepository(filepath.Join(blocker, "messages.json"), zap.New(core))

	stored := repo.Append(sms("SM1"))
	assert.Equal(t, "SM1", stored.ID)
	_, err := repo.MarkRead("SM1")
	require.NoError(t, err)

	total, unread := repo.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, unread)
	assert.Equal(t, 2, logs.FilterMessage("saving messages failed").Len())
}

func TestMessagesConcurrentAppends(t *testing.T) {
	repo, path := newMessages(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repo.Append(sms(fmt.Sprintf("SM%d", i)))
			_, _ = repo.MarkRead(fmt.Sprintf("SM%d", i))
		}(i)
	}
	wg.Wait()

	total, unread := repo.Counts()
	assert.Equal(t, 50, total)
	assert.Equal(t, 0, unread)
	assert.Len(t, NewMessagesRepository(path, zap.NewNop()).All(), 50)
}
