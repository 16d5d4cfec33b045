// Package negotiation drives the per-conversation state machine that turns
// free-text replies into a bounded, persisted agreement. One Manager per
// conversation; managers are not shared across goroutines.
package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/dialogue"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
	"github.com/harunnryd/yakusoku/internal/logger"
	"github.com/harunnryd/yakusoku/internal/memory"
	"github.com/harunnryd/yakusoku/internal/parser"

	"github.com/oklog/ulid/v2"
)

type State string

const (
	StateInitial     State = "INITIAL"
	StateProposed    State = "PROPOSED_TIME"
	StateNegotiating State = "NEGOTIATING"
	StateAgreed      State = "AGREEMENT_REACHED"
	StateRejected    State = "REJECTED"
)

func (s State) Terminal() bool {
	return s == StateAgreed || s == StateRejected
}

// Outcome is the result of one conversation turn. Done is true once the
// negotiation reached a terminal agreement.
type Outcome struct {
	Reply     string
	Agreement *agreement.Agreement
	Done      bool
}

type ManagerConfig struct {
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
	Memory         *memory.Store // optional
}

type Manager struct {
	backend dialogue.Backend
	store   *agreement.Store
	policy  *Policy
	parser  *parser.Parser
	clk     clock.Clock
	mem     *memory.Store

	requestTimeout time.Duration
	retryBackoff   time.Duration

	mu             sync.Mutex
	conversationID string
	state          State
	round          int
	lastOffer      time.Duration
	event          Event
	rejectReason   string
}

func NewManager(backend dialogue.Backend, store *agreement.Store, policy *Policy, psr *parser.Parser, clk clock.Clock, cfg ManagerConfig) *Manager {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Manager{
		backend:        backend,
		store:          store,
		policy:         policy,
		parser:         psr,
		clk:            clk,
		mem:            cfg.Memory,
		requestTimeout: cfg.RequestTimeout,
		retryBackoff:   cfg.RetryBackoff,
		conversationID: ulid.Make().String(),
		state:          StateInitial,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Round() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round
}

func (m *Manager) ConversationID() string {
	return m.conversationID
}

// Start opens the conversation for the given behavioral event and returns
// the opening message.
func (m *Manager) Start(ctx context.Context, evt Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInitial {
		return "", yakusokuErrors.InvalidState(fmt.Sprintf("negotiation already started (state %s)", m.state))
	}

	m.event = evt
	m.recallHistory(ctx)

	text, err := m.generate(ctx, dialogue.PromptContext{
		Kind:       dialogue.KindOpening,
		Category:   m.event.Category,
		SubjectKey: m.event.SubjectKey,
		Elapsed:    m.event.Elapsed,
		Recent:     m.event.Recent,
	})
	if err != nil {
		// Conversation stays in INITIAL so the host can retry Start.
		return "", err
	}

	m.state = StateProposed
	return text, nil
}

// ProcessReply consumes one user reply. Unparseable replies trigger a
// clarification and do not consume a negotiation round; out-of-bounds
// offers are clamped into a counter-offer; exceeding the round cap forces
// a compromise at the last clamped offer so the loop always terminates.
func (m *Manager) ProcessReply(ctx context.Context, text string) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateProposed, StateNegotiating:
	case StateInitial:
		return nil, yakusokuErrors.InvalidState("negotiation not started")
	default:
		return nil, yakusokuErrors.InvalidState(fmt.Sprintf("negotiation is terminal (state %s)", m.state))
	}

	d, ok := m.parser.Parse(text)
	if !ok {
		reply, err := m.generate(ctx, dialogue.PromptContext{
			Kind:       dialogue.KindClarify,
			Category:   m.event.Category,
			SubjectKey: m.event.SubjectKey,
			Round:      m.round,
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{Reply: reply}, nil
	}

	bounds := m.policy.BoundsFor(m.event.Category)
	if bounds.Contains(d) {
		return m.reachAgreement(ctx, d, "agreed")
	}

	clamped := bounds.Clamp(d)
	next := m.round + 1
	if next > m.policy.MaxRounds {
		slog.Info("Negotiation round cap reached, forcing compromise",
			"conversation", m.conversationID,
			"rounds", next,
			"offer", clamped,
		)
		m.round = next
		return m.reachAgreement(ctx, clamped, "forced_compromise")
	}

	reply, err := m.generate(ctx, dialogue.PromptContext{
		Kind:       dialogue.KindCounter,
		Category:   m.event.Category,
		SubjectKey: m.event.SubjectKey,
		Offer:      clamped,
		Round:      next,
	})
	if err != nil {
		// Round not consumed: the conversation resumes from its last
		// stable state and the host may retry the same reply.
		return nil, err
	}

	m.round = next
	m.lastOffer = clamped
	m.state = StateNegotiating
	return &Outcome{Reply: reply}, nil
}

// Cancel terminates the conversation without an agreement.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminal() {
		return yakusokuErrors.InvalidState(fmt.Sprintf("negotiation is terminal (state %s)", m.state))
	}

	m.state = StateRejected
	m.rejectReason = "user_cancelled"
	m.recordHistory(context.Background(), 0, "cancelled")
	return nil
}

func (m *Manager) reachAgreement(ctx context.Context, d time.Duration, outcome string) (*Outcome, error) {
	now := m.clk.Now()
	a := agreement.New(m.event.SubjectKey, m.event.Category, d, m.conversationID, now)

	if err := m.store.Save(a); err != nil {
		// State unchanged: the host may retry the same reply.
		return nil, yakusokuErrors.Repository(err, "persist agreement")
	}

	m.state = StateAgreed
	m.recordHistory(ctx, d, outcome)

	slog.Info("Agreement reached",
		"conversation", m.conversationID,
		"agreement", a.ID,
		"duration", d,
		"outcome", outcome,
	)

	reply := fmt.Sprintf("Deal: %s. The timer starts now.", dialogue.FormatDuration(d))
	return &Outcome{Reply: reply, Agreement: a, Done: true}, nil
}

// generate calls the dialogue backend with a bounded timeout, retrying
// once after a short backoff before surfacing NegotiationFailed.
func (m *Manager) generate(ctx context.Context, p dialogue.PromptContext) (string, error) {
	text, err := m.generateOnce(ctx, p)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", yakusokuErrors.NegotiationFailed(err, "dialogue backend call")
	}

	slog.Warn("Dialogue backend call failed, retrying once",
		"conversation", m.conversationID,
		"kind", p.Kind,
		"backoff", m.retryBackoff,
		"error", err,
	)
	time.Sleep(m.retryBackoff)

	text, err = m.generateOnce(ctx, p)
	if err != nil {
		return "", yakusokuErrors.NegotiationFailed(err, "dialogue backend call")
	}
	return text, nil
}

func (m *Manager) generateOnce(ctx context.Context, p dialogue.PromptContext) (string, error) {
	ctx = logger.WithConversationID(ctx, m.conversationID)
	ctx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	defer cancel()
	return m.backend.Generate(ctx, p)
}

func (m *Manager) recallHistory(ctx context.Context) {
	if m.mem == nil || len(m.event.Recent) > 0 {
		return
	}

	query := fmt.Sprintf("%s %s", m.event.Category, m.event.SubjectKey)
	recent, err := m.mem.Recall(ctx, query, 3)
	if err != nil {
		slog.Warn("Failed to recall negotiation history", "conversation", m.conversationID, "error", err)
		return
	}
	m.event.Recent = recent
}

func (m *Manager) recordHistory(ctx context.Context, d time.Duration, outcome string) {
	if m.mem == nil {
		return
	}

	err := m.mem.Record(ctx, memory.Entry{
		Category:       m.event.Category,
		SubjectKey:     m.event.SubjectKey,
		AgreedDuration: d,
		Outcome:        outcome,
		At:             m.clk.Now(),
	})
	if err != nil {
		slog.Warn("Failed to record negotiation history", "conversation", m.conversationID, "error", err)
	}
}
