package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradedash/internal/protocol"
)

func TestDispatcherCoversEveryInboundEvent(t *testing.T) {
	d := NewDispatcher()
	assert.ElementsMatch(t, protocol.InboundEvents, d.Events())
}

func TestDispatchRoutesByEvent(t *testing.T) {
	d := NewDispatcher()

	cases := []struct {
		event string
		data  string
		check func(t *testing.T, msg interface{})
	}{
		{protocol.EventDashboardData, `{"stats":{"total_trades":3}}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(SnapshotMsg)
			require.True(t, ok)
			assert.Equal(t, 3, m.Snapshot.Stats.TotalTrades)
		}},
		{protocol.EventScanStatus, `{"message":"done","state":"completed"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(ScanStatusMsg)
			require.True(t, ok)
			assert.Equal(t, protocol.ScanCompleted, m.Status.State)
		}},
		{protocol.EventNewOpportunity, `{"symbol":"BTC/USDT","recommendation":"AL"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(OpportunityMsg)
			require.True(t, ok)
			assert.Equal(t, "BTC/USDT", m.Opportunity.Symbol)
		}},
		{protocol.EventReanalysisResult, `{"status":"error","message":"x"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(ReanalysisResultMsg)
			require.True(t, ok)
			assert.Equal(t, "x", m.Result.Message)
		}},
		{protocol.EventToast, `{"message":"m","type":"error"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(ToastMsg)
			require.True(t, ok)
			assert.Equal(t, protocol.SeverityError, m.Toast.Severity)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			msg, err := d.Dispatch(protocol.Envelope{Event: tc.event, Data: json.RawMessage(tc.data)})
			require.NoError(t, err)
			tc.check(t, msg)
		})
	}
}

func TestDispatchRejectsBadInput(t *testing.T) {
	d := NewDispatcher()

	_, err := d.Dispatch(protocol.Envelope{Event: "nope", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = d.Dispatch(protocol.Envelope{Event: protocol.EventDashboardData})
	assert.Error(t, err, "空 payload 不能清空界面")

	_, err = d.Dispatch(protocol.Envelope{Event: protocol.EventDashboardData, Data: json.RawMessage(`"text"`)})
	assert.Error(t, err)
}

// recordingSender 记录发送的命令
type recordingSender struct {
	events   []string
	payloads []interface{}
	err      error
}

func (r *recordingSender) Send(event string, payload interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestCommandsEmitNamedEvents(t *testing.T) {
	rec := &recordingSender{}
	cmds := NewCommands(rec)

	require.NoError(t, cmds.RequestSnapshot())
	require.NoError(t, cmds.StartScan())
	require.NoError(t, cmds.ConfirmTrade(protocol.Opportunity{Symbol: "A"}))
	require.NoError(t, cmds.ReanalyzePosition(" B "))

	assert.Equal(t, protocol.OutboundCommands, rec.events)
	assert.Nil(t, rec.payloads[0])
	assert.Equal(t, protocol.SymbolRequest{Symbol: "B"}, rec.payloads[3])

	assert.ErrorIs(t, cmds.ReanalyzePosition(""), protocol.ErrMissingSymbol)
	assert.Len(t, rec.events, 4)

	rec.err = ErrNotConnected
	assert.True(t, errors.Is(cmds.StartScan(), ErrNotConnected))
}

func TestScanToggle(t *testing.T) {
	var toggle ScanToggle
	assert.True(t, toggle.Enabled())

	require.True(t, toggle.Begin())
	assert.False(t, toggle.Enabled())
	assert.False(t, toggle.Begin(), "禁用期间不能再次开始")

	toggle.OnStatus(protocol.ScanStatus{Message: "scanning", State: protocol.ScanInProgress})
	assert.False(t, toggle.Enabled())

	for _, state := range []protocol.ScanState{protocol.ScanStarting, protocol.ScanCompleted, protocol.ScanIdle, protocol.ScanFailed, ""} {
		toggle.Begin()
		toggle.OnStatus(protocol.ScanStatus{State: state})
		assert.True(t, toggle.Enabled(), "state=%q 应重新启用", state)
	}

	toggle.Begin()
	toggle.Refused()
	assert.True(t, toggle.Enabled())

	toggle.Begin()
	toggle.OnDisconnect()
	assert.True(t, toggle.Enabled())
}
