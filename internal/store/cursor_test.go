package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymsg/messenger-store/internal/model"
)

func TestCursorRoundTrip(t *testing.T) {
	pos := Position{TsMilli: 1700000000123, ID: 42}

	decoded, err := DecodeCursor(EncodeCursor(pos))
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, pos, *decoded)
}

func TestDecodeCursorEmpty(t *testing.T) {
	decoded, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeCursorMalformed(t *testing.T) {
	for _, cursor := range []string{"not-base64!!!", "bm90LWpzb24", "////"} {
		_, err := DecodeCursor(cursor)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "cursor %q", cursor)
	}
}

func TestPositionAfter(t *testing.T) {
	pos := Position{TsMilli: 1000, ID: 5}

	// Older timestamps come after in descending order.
	assert.True(t, pos.After(999, 1))
	// Same timestamp: only higher ids come after.
	assert.True(t, pos.After(1000, 6))
	assert.False(t, pos.After(1000, 5))
	assert.False(t, pos.After(1000, 4))
	// Newer timestamps come before.
	assert.False(t, pos.After(1001, 9))
}

func TestMessagePositionMillisecondExact(t *testing.T) {
	msg := &model.Message{
		MessageID: 3,
		CreatedAt: time.UnixMilli(1700000000123).UTC(),
	}
	pos := MessagePosition(msg)
	assert.Equal(t, int64(1700000000123), pos.TsMilli)
	assert.Equal(t, int64(3), pos.ID)
}
