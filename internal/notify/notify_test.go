package notify

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradedash/internal/protocol"
)

func TestNotifyLifecycle(t *testing.T) {
	s := New(DefaultTiming())
	s.Notify("Position closed", protocol.SeveritySuccess)

	require.Equal(t, 1, s.Len())
	item := s.Items()[0]
	assert.False(t, item.Shown(), "刚创建时处于出现阶段")

	cmd := s.Update(tickMsg{id: item.ID, next: phaseVisible})
	require.NotNil(t, cmd)
	assert.True(t, s.Items()[0].Shown())

	cmd = s.Update(tickMsg{id: item.ID, next: phaseLeaving})
	require.NotNil(t, cmd)
	assert.False(t, s.Items()[0].Shown())
	assert.Equal(t, 1, s.Len(), "淡出期间仍然存在")

	cmd = s.Update(tickMsg{id: item.ID, next: phaseRemoved})
	assert.Nil(t, cmd)
	assert.Equal(t, 0, s.Len())

	// 已移除的条目收到迟到的 tick 不应有任何效果
	assert.Nil(t, s.Update(tickMsg{id: item.ID, next: phaseVisible}))
}

func TestNotifyRealTicks(t *testing.T) {
	s := New(Timing{Appear: time.Millisecond, Visible: time.Millisecond, Leave: time.Millisecond})
	cmd := s.Notify("scan done", protocol.SeverityInfo)

	steps := 0
	for cmd != nil {
		msg := cmd()
		cmd = s.Update(msg)
		steps++
		require.LessOrEqual(t, steps, 3)
	}
	assert.Equal(t, 3, steps)
	assert.Equal(t, 0, s.Len())
}

func TestNotifyDefaults(t *testing.T) {
	s := New(Timing{})
	s.Notify("   ", protocol.Severity("warning"))
	s.Notify("boom", protocol.SeverityError)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, DefaultMessage, items[0].Message)
	assert.Equal(t, protocol.SeverityInfo, items[0].Severity)
	assert.Equal(t, protocol.SeverityError, items[1].Severity)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestItemsAreIndependent(t *testing.T) {
	s := New(DefaultTiming())
	s.Notify("first", protocol.SeverityInfo)
	s.Notify("second", protocol.SeverityInfo)
	items := s.Items()

	s.Update(tickMsg{id: items[0].ID, next: phaseRemoved})
	rest := s.Items()
	require.Len(t, rest, 1)
	assert.Equal(t, "second", rest[0].Message)
}

func TestUpdateIgnoresForeignMessages(t *testing.T) {
	s := New(DefaultTiming())
	s.Notify("x", protocol.SeverityInfo)
	assert.Nil(t, s.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, 1, s.Len())
}

func TestViewOrdersNewestLast(t *testing.T) {
	s := New(DefaultTiming())
	assert.Equal(t, "", s.View(80))

	s.Notify("older", protocol.SeverityInfo)
	s.Notify("newer", protocol.SeverityError)
	out := s.View(80)
	require.Contains(t, out, "older")
	require.Contains(t, out, "newer")
	assert.Less(t, strings.Index(out, "older"), strings.Index(out, "newer"))
}
