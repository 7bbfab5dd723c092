package tracker

import (
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/ledger"
	"github.com/betbot/aviatorbot/internal/strategy"
)

// snapshotRounds 快照里携带的最近局数
const snapshotRounds = 20

// Snapshot 给控制面 / dashboard 的只读视图
type Snapshot struct {
	Session        int64                    `json:"session"`
	At             time.Time                `json:"at"`
	Rounds         domain.History           `json:"rounds"`
	Trace          *gates.FilterTrace       `json:"trace,omitempty"`
	Strategy       strategy.Status          `json:"strategy"`
	Pending        *strategy.BetInstruction `json:"pending,omitempty"`
	LastSettled    []ledger.Settlement      `json:"last_settled,omitempty"`
	Ledger         ledger.Summary           `json:"ledger"`
	Halted         bool                     `json:"halted"`
	HaltReason     string                   `json:"halt_reason,omitempty"`
	SniperArmed    bool                     `json:"sniper_armed"`
	AntiAFK        bool                     `json:"anti_afk"`
	RoundsSinceBet int                      `json:"rounds_since_bet"`
	AFKThreshold   int                      `json:"afk_threshold"`
	LastActivity   time.Time                `json:"last_activity"`
}

// Snapshot 当前状态快照
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	rounds := t.history.Snapshot()
	if len(rounds) > snapshotRounds {
		rounds = rounds[:snapshotRounds]
	}
	s := Snapshot{
		Session:        t.session,
		At:             t.now(),
		Rounds:         rounds,
		Strategy:       t.engine.Status(),
		Ledger:         t.ledger.Summary(),
		SniperArmed:    t.sniperArmed,
		AntiAFK:        t.antiAFK.Enabled,
		RoundsSinceBet: t.roundsSinceBet,
		AFKThreshold:   t.afkThreshold,
		LastActivity:   t.lastActivity,
		LastSettled:    append([]ledger.Settlement(nil), t.lastSettled...),
	}
	if t.lastTrace != nil {
		tr := *t.lastTrace
		s.Trace = &tr
	}
	if t.pending != nil {
		p := *t.pending
		s.Pending = &p
	}
	s.Halted, s.HaltReason = t.breaker.Halted()
	return s
}

// Subscribe 订阅快照推送；返回取消函数。慢订阅者会丢帧，不会阻塞主循环。
func (t *Tracker) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	t.subsMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subsMu.Unlock()

	var once bool
	return ch, func() {
		t.subsMu.Lock()
		defer t.subsMu.Unlock()
		if once {
			return
		}
		once = true
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Tracker) publish() {
	snap := t.Snapshot()
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// History 最近 n 局（倒序）
func (t *Tracker) History(n int) domain.History {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.history.Snapshot()
	if n > 0 && n < len(h) {
		h = h[:n]
	}
	return h
}

// LastAnalysis 最近一次过滤结论
func (t *Tracker) LastAnalysis() (gates.FilterTrace, bool) {
	return t.filter.Last()
}
