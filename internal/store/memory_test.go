package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertAndUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h, err := m.Insert(ctx, Record{
		MessageID: 3,
		Dest:      "+15550100",
		Body:      "hello",
		State:     StateSending,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NotEqual(t, HandleNone, h)

	rec, ok := m.Get(h)
	require.True(t, ok)
	assert.Equal(t, StateSending, rec.State)

	require.NoError(t, m.Update(ctx, h, StateFailed, 17))
	rec, _ = m.Get(h)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, 17, rec.ErrorCode)
}

func TestMemoryUpdateUnknownHandle(t *testing.T) {
	m := NewMemory()
	assert.Error(t, m.Update(context.Background(), 99, StateSent, 0))
}

func TestMemoryHandlesAreDistinct(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h1, err := m.Insert(ctx, Record{Dest: "a"})
	require.NoError(t, err)
	h2, err := m.Insert(ctx, Record{Dest: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
