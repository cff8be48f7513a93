package types

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTextStream(t *testing.T) {
	stream := NewStaticTextStream("one", "two")

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", chunk)

	chunk, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", chunk)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, stream.Close())
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder

	r.RecordSuccess(100 * time.Millisecond)
	r.RecordSuccess(50 * time.Millisecond)
	r.RecordError(errors.New("boom"))

	m := r.Metrics()
	assert.EqualValues(t, 3, m.RequestCount)
	assert.EqualValues(t, 2, m.SuccessCount)
	assert.EqualValues(t, 1, m.ErrorCount)
	assert.Equal(t, 150*time.Millisecond, m.TotalLatency)
	assert.Equal(t, "boom", m.LastError)
	assert.False(t, m.LastRequestTime.IsZero())
}

func TestChatState_CanSend(t *testing.T) {
	assert.True(t, ChatStateIdle.CanSend())
	assert.True(t, ChatStateCompleted.CanSend())
	assert.True(t, ChatStateError.CanSend())
	assert.False(t, ChatStateSending.CanSend())
	assert.False(t, ChatStateStreaming.CanSend())
}

func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, RoleSystem, SystemMessage("s").Role)
	assert.Equal(t, RoleUser, UserMessage("u").Role)
	assert.Equal(t, RoleAssistant, AssistantMessage("a").Role)
	assert.Equal(t, "u", UserMessage("u").Content)
}
