package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradedash/internal/decision"
	"github.com/betbot/tradedash/internal/gateway"
	"github.com/betbot/tradedash/internal/notify"
	"github.com/betbot/tradedash/internal/protocol"
	"github.com/betbot/tradedash/internal/session"
)

type sentCommand struct {
	Event   string
	Payload string
}

type fakeChannel struct {
	events chan tea.Msg
	sent   []sentCommand
	err    error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan tea.Msg, 16)}
}

func (f *fakeChannel) Send(event string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	raw := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	f.sent = append(f.sent, sentCommand{Event: event, Payload: raw})
	return nil
}

func (f *fakeChannel) Events() <-chan tea.Msg {
	return f.events
}

type apiCall struct {
	Path string
	Body string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	reply string
}

func newFakeAPI(t *testing.T, reply string) (*fakeAPI, *gateway.Gateway) {
	t.Helper()
	api := &fakeAPI{reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.calls = append(api.calls, apiCall{Path: r.URL.Path, Body: string(body)})
		api.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, api.reply)
	}))
	t.Cleanup(srv.Close)
	return api, gateway.New(gateway.NewClient(srv.URL, time.Second))
}

func (a *fakeAPI) recorded() []apiCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]apiCall(nil), a.calls...)
}

func newTestModel(t *testing.T) (*Model, *fakeChannel, *fakeAPI) {
	t.Helper()
	ch := newFakeChannel()
	api, gw := newFakeAPI(t, `{"status":"success","message":"done"}`)
	m := New(Options{
		Channel:  ch,
		Gateway:  gw,
		Timing:   notify.Timing{Appear: time.Millisecond, Visible: time.Millisecond, Leave: time.Millisecond},
		Location: time.UTC,
	})
	t.Cleanup(func() { close(ch.events) })
	return m, ch, api
}

func send(m *Model, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run 执行命令并展开 BatchMsg；阻塞的命令（例如等待通道事件）在超时后被忽略
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(400 * time.Millisecond):
		return nil
	}
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	}

	var (
		mu  sync.Mutex
		out []tea.Msg
		wg  sync.WaitGroup
	)
	for _, c := range batch {
		wg.Add(1)
		go func(c tea.Cmd) {
			defer wg.Done()
			msgs := run(c)
			mu.Lock()
			out = append(out, msgs...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

// settle 执行弹窗的进场动画，之后弹窗才接受按键
func settle(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for _, msg := range run(cmd) {
		send(m, msg)
	}
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func snapshot(t *testing.T, raw string) session.SnapshotMsg {
	t.Helper()
	var snap protocol.Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	return session.SnapshotMsg{Snapshot: snap}
}

const twoPositions = `{
	"stats": {"total_pnl": "12.5", "win_rate": "50.0", "total_trades": 2},
	"open_positions": [
		{"symbol": "BTC/USDT", "side": "buy", "unrealized_pnl": 10},
		{"symbol": "ETH/USDT", "side": "sell", "unrealized_pnl": -3.2}
	],
	"trade_history": [{"symbol": "SOL/USDT", "pnl": 7.5, "status": "CLOSED", "closed_at": "2024-03-05 10:20:30"}],
	"pnl_timeline": [{"x": "2024-03-04", "y": 0}, {"x": "2024-03-05", "y": 7.5}]
}`

func messages(m *Model) []string {
	var out []string
	for _, it := range m.Notifications().Items() {
		out = append(out, it.Message)
	}
	return out
}

func lastNote(t *testing.T, m *Model) notify.Item {
	t.Helper()
	items := m.Notifications().Items()
	require.NotEmpty(t, items, "应当有通知")
	return items[len(items)-1]
}

func TestInitWaitsForChannelEvents(t *testing.T) {
	m, ch, _ := newTestModel(t)
	ch.events <- session.ConnectedMsg{}

	msgs := run(m.Init())
	require.Len(t, msgs, 1)
	_, ok := msgs[0].(session.ConnectedMsg)
	assert.True(t, ok)

	send(m, msgs[0])
	assert.True(t, m.Connected())
	assert.Empty(t, m.Notifications().Items(), "首次连接不弹通知")
}

func TestStreamClosedStopsListening(t *testing.T) {
	m, _, _ := newTestModel(t)
	cmd := send(m, session.ClosedMsg{})
	assert.Nil(t, cmd, "事件流结束后不再等待")
	assert.False(t, m.Connected())
	assert.Nil(t, m.waitForEvent())
}

func TestSnapshotReplacesViewAndKeepsSelection(t *testing.T) {
	m, _, _ := newTestModel(t)
	send(m, snapshot(t, twoPositions))

	view, ok := m.Snapshot()
	require.True(t, ok)
	require.Len(t, view.Positions, 2)
	assert.Equal(t, "BTC/USDT", m.Selected(), "默认选中第一行")
	assert.Equal(t, 1, m.Charts().Live())

	send(m, key("down"))
	assert.Equal(t, "ETH/USDT", m.Selected())

	// 顺序变化后选中项跟随 symbol
	send(m, snapshot(t, `{"open_positions":[
		{"symbol":"XRP/USDT","side":"long","unrealized_pnl":1},
		{"symbol":"ETH/USDT","side":"short","unrealized_pnl":2},
		{"symbol":"BTC/USDT","side":"long","unrealized_pnl":3}]}`))
	assert.Equal(t, "ETH/USDT", m.Selected())
	assert.Equal(t, 1, m.Charts().Live(), "旧图表先释放")

	// 选中的仓位消失后停在原来的行
	send(m, snapshot(t, `{"open_positions":[{"symbol":"XRP/USDT","side":"long","unrealized_pnl":1}]}`))
	assert.Equal(t, "XRP/USDT", m.Selected())

	send(m, snapshot(t, `{}`))
	assert.Empty(t, m.Selected())
	view, _ = m.Snapshot()
	assert.Empty(t, view.Positions)
}

func TestScanToggle(t *testing.T) {
	m, ch, _ := newTestModel(t)

	send(m, key("s"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, protocol.CmdStartScan, ch.sent[0].Event)
	assert.False(t, m.ScanEnabled())

	send(m, key("s"))
	assert.Len(t, ch.sent, 1, "禁用期间不重复发送")

	send(m, session.ScanStatusMsg{Status: protocol.ScanStatus{Message: "scanning", State: protocol.ScanInProgress}})
	assert.False(t, m.ScanEnabled())

	send(m, session.ScanStatusMsg{Status: protocol.ScanStatus{Message: "done", State: protocol.ScanCompleted}})
	assert.True(t, m.ScanEnabled())
	assert.Equal(t, protocol.SeveritySuccess, lastNote(t, m).Severity)

	// 没有 state 视为非进行中
	send(m, key("s"))
	send(m, session.ScanStatusMsg{Status: protocol.ScanStatus{Message: "hm"}})
	assert.True(t, m.ScanEnabled())
}

func TestScanRefusedWhileDisconnected(t *testing.T) {
	m, ch, _ := newTestModel(t)
	ch.err = session.ErrNotConnected

	send(m, key("s"))
	assert.True(t, m.ScanEnabled(), "发送失败后重新启用")
	note := lastNote(t, m)
	assert.Equal(t, TextNotConnected, note.Message)
	assert.Equal(t, protocol.SeverityError, note.Severity)
}

func TestDisconnectNotifiesAndReenablesScan(t *testing.T) {
	m, _, _ := newTestModel(t)
	send(m, session.ConnectedMsg{})
	send(m, key("s"))
	require.False(t, m.ScanEnabled())

	send(m, session.DisconnectedMsg{Dropped: true})
	assert.False(t, m.Connected())
	assert.True(t, m.ScanEnabled())
	assert.Equal(t, TextDisconnected, lastNote(t, m).Message)

	send(m, session.ConnectedMsg{Reconnected: true})
	assert.True(t, m.Connected())
	assert.Equal(t, TextReconnected, lastNote(t, m).Message)

	send(m, session.ReconnectFailedMsg{Attempts: 3})
	assert.Contains(t, lastNote(t, m).Message, "3 attempts")
}

func TestOpportunityConfirmEchoesPayload(t *testing.T) {
	m, ch, _ := newTestModel(t)
	raw := `{"symbol":"BTC/USDT","recommendation":"AL","current_price":65000,"reason":"breakout","extra":{"k":1}}`
	var op protocol.Opportunity
	require.NoError(t, json.Unmarshal([]byte(raw), &op))

	settle(t, m, send(m, session.OpportunityMsg{Opportunity: op}))
	assert.Equal(t, decision.Showing, m.Opportunity().State())
	require.True(t, m.Opportunity().Settled())
	assert.Contains(t, m.View(), "New Trade Opportunity")

	send(m, key("y"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, protocol.CmdConfirmTrade, ch.sent[0].Event)
	assert.JSONEq(t, raw, ch.sent[0].Payload, "原样回传")
	assert.Equal(t, decision.Hidden, m.Opportunity().State())
	assert.Equal(t, decision.Accepted, m.Opportunity().Outcome())
}

func TestOpportunityRefusedStaysOpen(t *testing.T) {
	m, ch, _ := newTestModel(t)
	settle(t, m, send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "A"}}))
	ch.err = session.ErrNotConnected

	send(m, key("y"))
	assert.Equal(t, decision.Showing, m.Opportunity().State(), "发送失败时保持打开以便重试")
	assert.Equal(t, TextNotConnected, lastNote(t, m).Message)

	ch.err = nil
	send(m, key("y"))
	assert.Len(t, ch.sent, 1)
	assert.Equal(t, decision.Hidden, m.Opportunity().State())
}

func TestOpportunityReplacedAndCancelled(t *testing.T) {
	m, ch, _ := newTestModel(t)
	settle(t, m, send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "A"}}))
	send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "B"}})
	op, ok := m.Opportunity().Pending()
	require.True(t, ok)
	assert.Equal(t, "B", op.Symbol, "新机会替换旧的")

	send(m, key("n"))
	assert.Equal(t, decision.Hidden, m.Opportunity().State())
	assert.Empty(t, ch.sent)
}

func TestReanalyzeAndCloseFromVerdict(t *testing.T) {
	m, ch, api := newTestModel(t)
	send(m, snapshot(t, twoPositions))
	send(m, key("down"))

	send(m, key("r"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, protocol.CmdReanalyzePosition, ch.sent[0].Event)
	assert.JSONEq(t, `{"symbol":"ETH/USDT"}`, ch.sent[0].Payload)
	assert.Contains(t, lastNote(t, m).Message, "ETH/USDT")

	var res protocol.ReanalysisResult
	require.NoError(t, json.Unmarshal([]byte(`{"status":"success","data":{"recommendation":"KAPAT","reason":"trend broke"}}`), &res))
	settle(t, m, send(m, session.ReanalysisResultMsg{Result: res}))
	v, ok := m.Reanalysis().Pending()
	require.True(t, ok)
	assert.Equal(t, "ETH/USDT", v.Symbol, "缺少 symbol 时使用最后请求的")
	assert.True(t, m.Reanalysis().CanClose())
	assert.Contains(t, m.View(), "[x] close position")

	msgs := run(send(m, key("x")))
	res2, ok := find[gateway.CloseResultMsg](msgs)
	require.True(t, ok, "不再二次确认")
	assert.Equal(t, "done", res2.Message)
	assert.Equal(t, decision.Hidden, m.Reanalysis().State())
	assert.Zero(t, m.PendingConfirmations())

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.PathClosePosition, calls[0].Path)
	assert.JSONEq(t, `{"symbol":"ETH/USDT"}`, calls[0].Body)
}

func TestHoldVerdictOnlyAcknowledges(t *testing.T) {
	m, _, api := newTestModel(t)
	settle(t, m, send(m, session.ReanalysisResultMsg{Result: protocol.ReanalysisResult{
		Status: "success",
		Data:   &protocol.Verdict{Symbol: "A", Recommendation: "TUT", Reason: "fine"},
	}}))
	require.Equal(t, decision.Showing, m.Reanalysis().State())
	assert.NotContains(t, m.View(), "[x] close position")

	assert.Nil(t, send(m, key("x")))
	assert.Equal(t, decision.Showing, m.Reanalysis().State())

	send(m, key("enter"))
	assert.Equal(t, decision.Hidden, m.Reanalysis().State())
	assert.Equal(t, decision.Dismissed, m.Reanalysis().Outcome())
	assert.Empty(t, api.recorded())
}

func TestReanalysisFailureNotifies(t *testing.T) {
	m, _, _ := newTestModel(t)
	send(m, session.ReanalysisResultMsg{Result: protocol.ReanalysisResult{Status: "error", Message: "no market data"}})
	assert.Equal(t, decision.Hidden, m.Reanalysis().State())
	note := lastNote(t, m)
	assert.Equal(t, "no market data", note.Message)
	assert.Equal(t, protocol.SeverityError, note.Severity)

	send(m, session.ReanalysisResultMsg{Result: protocol.ReanalysisResult{Status: "error"}})
	assert.Equal(t, decision.GenericReanalysisFailure, lastNote(t, m).Message)
}

func TestClosePositionNeedsConfirmation(t *testing.T) {
	m, _, api := newTestModel(t)
	send(m, snapshot(t, twoPositions))

	msgs := run(send(m, key("c")))
	req, ok := find[gateway.ConfirmRequestMsg](msgs)
	require.True(t, ok)
	send(m, req)
	assert.Equal(t, 1, m.PendingConfirmations())
	assert.Contains(t, m.View(), "BTC/USDT position?")

	// 回车不算确认
	assert.Nil(t, send(m, key("enter")))
	assert.Equal(t, 1, m.PendingConfirmations())

	// 拒绝：什么都不发生
	assert.Nil(t, send(m, key("n")))
	assert.Zero(t, m.PendingConfirmations())
	assert.Empty(t, api.recorded())

	msgs = run(send(m, key("c")))
	req, _ = find[gateway.ConfirmRequestMsg](msgs)
	send(m, req)
	msgs = run(send(m, key("y")))
	res, ok := find[gateway.CloseResultMsg](msgs)
	require.True(t, ok)
	send(m, res)
	assert.Equal(t, "done", lastNote(t, m).Message)
	assert.Len(t, api.recorded(), 1)
}

func TestCloseWithoutPositionsDoesNothing(t *testing.T) {
	m, _, api := newTestModel(t)
	assert.Nil(t, send(m, key("c")))
	assert.Nil(t, send(m, key("r")))
	assert.Empty(t, api.recorded())
}

func TestAnalysisForm(t *testing.T) {
	m, _, api := newTestModel(t)

	send(m, key("a"))
	require.True(t, m.form.open)
	send(m, key("s"))
	assert.True(t, m.ScanEnabled(), "表单打开时按键输入到表单")
	send(m, key("ol/usdt"))
	symbol, timeframe := m.form.Values()
	assert.Equal(t, "sol/usdt", symbol)
	assert.Equal(t, DefaultTimeframe, timeframe)

	cmd := send(m, key("enter"))
	assert.False(t, m.form.open)
	assert.True(t, m.gateway.Busy())
	assert.Contains(t, m.View(), "Analyzing")

	res, ok := find[gateway.AnalysisResultMsg](run(cmd))
	require.True(t, ok)
	send(m, res)
	assert.False(t, m.gateway.Busy())
	assert.Equal(t, "done", lastNote(t, m).Message)

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.PathNewAnalysis, calls[0].Path)
	assert.JSONEq(t, `{"symbol":"sol/usdt","timeframe":"1h"}`, calls[0].Body)
}

func TestAnalysisFormValidation(t *testing.T) {
	m, _, api := newTestModel(t)
	send(m, key("a"))
	send(m, key("enter"))
	assert.True(t, m.form.open, "校验失败时表单保持打开")
	assert.Equal(t, protocol.ErrMissingSymbol.Error(), lastNote(t, m).Message)

	send(m, key("esc"))
	assert.False(t, m.form.open)
	assert.Empty(t, api.recorded())
}

func TestToastAndRefresh(t *testing.T) {
	m, ch, _ := newTestModel(t)
	send(m, session.ToastMsg{Toast: protocol.Toast{Message: "Trade opened", Severity: "weird"}})
	note := lastNote(t, m)
	assert.Equal(t, "Trade opened", note.Message)
	assert.Equal(t, protocol.SeverityInfo, note.Severity)
	assert.Contains(t, m.View(), "Trade opened")

	send(m, key("ctrl+r"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, protocol.CmdRequestDashboardData, ch.sent[0].Event)
}

func TestNotificationsExpire(t *testing.T) {
	m, _, _ := newTestModel(t)
	cmd := send(m, session.ToastMsg{Toast: protocol.Toast{Message: "bye"}})
	for i := 0; i < 5 && m.Notifications().Len() > 0; i++ {
		var next []tea.Cmd
		for _, msg := range run(cmd) {
			next = append(next, send(m, msg))
		}
		cmd = tea.Batch(next...)
	}
	assert.Zero(t, m.Notifications().Len())
}

func TestViewStates(t *testing.T) {
	m, _, _ := newTestModel(t)
	out := m.View()
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, TextConnecting)

	send(m, session.ConnectedMsg{})
	send(m, snapshot(t, twoPositions))
	out = m.View()
	assert.Contains(t, out, "online")
	assert.Contains(t, out, "12.5 USDT")
	assert.Contains(t, out, "SOL/USDT")
	assert.True(t, strings.Contains(out, "▶"), "选中行有标记")
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	send(m, snapshot(t, twoPositions))
	msgs := run(send(m, key("q")))
	_, ok := find[tea.QuitMsg](msgs)
	assert.True(t, ok)
	assert.Zero(t, m.Charts().Live())
}

func TestOpportunityReplacedThenConfirmedSendsLatest(t *testing.T) {
	m, ch, _ := newTestModel(t)
	settle(t, m, send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "A", Recommendation: "AL"}}))
	send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "B", Recommendation: "SAT"}})

	send(m, key("y"))
	require.Len(t, ch.sent, 1, "只确认一次")
	assert.Equal(t, protocol.CmdConfirmTrade, ch.sent[0].Event)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ch.sent[0].Payload), &body))
	assert.Equal(t, "B", body["symbol"], "确认的是最新的机会")
	assert.Equal(t, "SAT", body["recommendation"])
}

func TestOpportunityArrivingWhileTypingInForm(t *testing.T) {
	m, ch, api := newTestModel(t)
	send(m, key("a"))
	send(m, key("ET"))

	enter := send(m, session.OpportunityMsg{Opportunity: protocol.Opportunity{Symbol: "DOGE/USDT", Recommendation: "AL"}})
	require.Equal(t, decision.Showing, m.Opportunity().State())
	require.False(t, m.Opportunity().Settled())

	// 弹窗进场期间的按键全部丢弃
	send(m, key("enter"))
	send(m, key("y"))
	assert.Empty(t, ch.sent, "进场期间不能确认")
	assert.Equal(t, decision.Showing, m.Opportunity().State())

	settle(t, m, enter)
	require.True(t, m.Opportunity().Settled())

	// 回车不再是确认键
	send(m, key("enter"))
	assert.Empty(t, ch.sent)
	assert.Equal(t, decision.Showing, m.Opportunity().State())

	send(m, key("y"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, protocol.CmdConfirmTrade, ch.sent[0].Event)
	assert.Contains(t, ch.sent[0].Payload, "DOGE/USDT")

	// 表单内容保持不变，也没有提交
	assert.True(t, m.form.open)
	symbol, _ := m.form.Values()
	assert.Equal(t, "ET", symbol)
	assert.Empty(t, api.recorded())
}

func TestReanalysisIgnoresKeysWhileEntering(t *testing.T) {
	m, _, api := newTestModel(t)
	cmd := send(m, session.ReanalysisResultMsg{Result: protocol.ReanalysisResult{
		Status: "success",
		Data:   &protocol.Verdict{Symbol: "ETH/USDT", Recommendation: "KAPAT", Reason: "trend broke"},
	}})
	require.False(t, m.Reanalysis().Settled())

	assert.Nil(t, send(m, key("x")))
	send(m, key("enter"))
	assert.Equal(t, decision.Showing, m.Reanalysis().State(), "进场期间按键无效")
	assert.Empty(t, api.recorded())

	settle(t, m, cmd)
	send(m, key("enter"))
	assert.Equal(t, decision.Dismissed, m.Reanalysis().Outcome())
}

func TestCloseInFlightSurvivesDisconnect(t *testing.T) {
	m, ch, api := newTestModel(t)
	send(m, session.ConnectedMsg{})
	send(m, snapshot(t, twoPositions))

	req, ok := find[gateway.ConfirmRequestMsg](run(send(m, key("c"))))
	require.True(t, ok)
	send(m, req)
	closing := send(m, key("y"))

	// 请求发出后通道断开
	ch.err = session.ErrNotConnected
	send(m, session.DisconnectedMsg{Dropped: true})
	require.False(t, m.Connected())

	res, ok := find[gateway.CloseResultMsg](run(closing))
	require.True(t, ok, "HTTP 请求不依赖通道")
	send(m, res)
	assert.Equal(t, "done", lastNote(t, m).Message)
	assert.Len(t, api.recorded(), 1)

	// 之后的通道命令被拒绝并提示
	send(m, key("r"))
	assert.Empty(t, ch.sent)
	note := lastNote(t, m)
	assert.Equal(t, TextNotConnected, note.Message)
	assert.Equal(t, protocol.SeverityError, note.Severity)
}

func TestHistoryShowsNewestTrades(t *testing.T) {
	m, _, _ := newTestModel(t)
	var trades []string
	for i := 1; i <= 20; i++ {
		trades = append(trades, fmt.Sprintf(`{"symbol":"T%02d/USDT","pnl":1,"status":"CLOSED","closed_at":"2024-03-%02d 10:00:00"}`, i, i))
	}
	send(m, snapshot(t, `{"trade_history":[`+strings.Join(trades, ",")+`]}`))

	out := m.View()
	assert.Contains(t, out, "T20/USDT", "最新的交易必须可见")
	assert.Contains(t, out, "T06/USDT")
	assert.NotContains(t, out, "T05/USDT")
	assert.NotContains(t, out, "T01/USDT")
	assert.Contains(t, out, "5 earlier")
	assert.Less(t, strings.Index(out, "T06/USDT"), strings.Index(out, "T20/USDT"), "保持原有顺序")
}

func TestConnectionStatusTexts(t *testing.T) {
	m, _, _ := newTestModel(t)
	send(m, session.DisconnectedMsg{})
	assert.Equal(t, TextUnreachable, lastNote(t, m).Message, "从未连上时不说连接丢失")
	assert.Contains(t, m.View(), TextUnreachable)

	send(m, session.ReconnectFailedMsg{Attempts: 3})
	send(m, session.ClosedMsg{})
	out := m.View()
	assert.Contains(t, out, "Could not reconnect after 3 attempts.", "放弃重连的提示保留")
	assert.NotContains(t, out, TextStreamClosed)

	m2, _, _ := newTestModel(t)
	send(m2, session.ClosedMsg{})
	assert.Contains(t, m2.View(), TextStreamClosed)
}
