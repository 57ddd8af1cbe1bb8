package dialog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/wayfind/internal/domain"
)

// Answerer generates the answer to a node question
type Answerer interface {
	AskAngle(ctx context.Context, angle, mode, input string) (string, error)
}

// Hooks receive the outcome of a dialog
type Hooks interface {
	// Answered runs synchronously before the reveal is scheduled
	Answered(ctx context.Context, nodeID, answer string)
	// RevealDue runs once the reveal delay has passed
	RevealDue(nodeID string)
}

// Scheduler runs f after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules with time.AfterFunc
type TimerScheduler struct{}

// AfterFunc implements Scheduler
func (TimerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Target identifies the node a dialog belongs to
type Target struct {
	NodeID   string
	Question string
	Angle    string
	Mode     domain.Mode
	// Answer is the stored answer of a node answered in an earlier session
	Answer   string
	Answered bool
}

// Result is the outcome of a dialog operation
type Result struct {
	State  State   `json:"state"`
	Toasts []Toast `json:"toasts,omitempty"`
}

// Options configure a Manager
type Options struct {
	Scheduler   Scheduler
	RevealDelay time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

// Manager owns the dialog states of a browsing session and runs their effects
type Manager struct {
	mu     sync.Mutex
	states map[string]State

	answerer  Answerer
	hooks     Hooks
	scheduler Scheduler
	delay     time.Duration
	logger    *zap.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

// NewManager creates a Manager
func NewManager(answerer Answerer, hooks Hooks, opts Options) *Manager {
	m := &Manager{
		states:    make(map[string]State),
		answerer:  answerer,
		hooks:     hooks,
		scheduler: opts.Scheduler,
		delay:     opts.RevealDelay,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if m.scheduler == nil {
		m.scheduler = TimerScheduler{}
	}
	if m.delay <= 0 {
		m.delay = RevealDelay
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Open returns the dialog of a node, creating it on first use
func (m *Manager) Open(t Target) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(t)
}

// Lookup returns the dialog of a node if it was opened
func (m *Manager) Lookup(nodeID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[nodeID]
	return s, ok
}

// Forget drops the dialog of a node
func (m *Manager) Forget(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, nodeID)
}

func (m *Manager) stateLocked(t Target) State {
	s, ok := m.states[t.NodeID]
	if !ok {
		if t.Answered {
			s = RestoreState(t.NodeID, t.Question, t.Answer, m.now())
		} else {
			s = NewState(t.NodeID, t.Question, m.now())
		}
		m.states[t.NodeID] = s
	}
	return s
}

// apply runs one transition under the lock and returns its effects
func (m *Manager) apply(t Target, ev Event) (State, []Effect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, effects := Apply(m.stateLocked(t), ev, m.now())
	m.states[t.NodeID] = next
	return next, effects
}

// Ask uses the node's single question. The answer call failing does not fail Ask:
// the error text becomes the answer and the dialog still completes.
func (m *Manager) Ask(ctx context.Context, t Target, input string) (Result, error) {
	state, effects := m.apply(t, AskQuestion{Input: input})
	res := Result{State: state}
	var request *Effect
	for i, e := range effects {
		if e.Err != nil {
			res.Toasts = appendToast(res.Toasts, e.Toast)
			return res, e.Err
		}
		if e.Kind == EffectRequestAnswer {
			request = &effects[i]
		}
	}
	if request == nil {
		return res, nil
	}

	answer, failed := m.requestAnswer(ctx, t, request.Input)

	state, effects = m.apply(t, AnswerReceived{Text: answer, Failed: failed})
	res.State = state
	for _, e := range effects {
		switch e.Kind {
		case EffectToast:
			res.Toasts = appendToast(res.Toasts, e.Toast)
		case EffectReplacePending:
			if m.hooks != nil {
				m.hooks.Answered(ctx, t.NodeID, e.Entry.Text)
			}
		case EffectScheduleReveal:
			m.scheduleReveal(t.NodeID)
		}
	}
	return res, nil
}

func (m *Manager) requestAnswer(ctx context.Context, t Target, input string) (string, bool) {
	if m.answerer == nil {
		return "answer service call failed: no answer service configured", true
	}
	// the question is spent once asked, so a dropped caller must not cancel the
	// answer; the answerer's own timeout bounds the call
	answer, err := m.answerer.AskAngle(context.WithoutCancel(ctx), t.Angle, t.Mode.Label(), input)
	if err != nil {
		m.logger.Warn("answer service failed",
			zap.String("node", t.NodeID),
			zap.String("angle", t.Angle),
			zap.Error(err))
		return "answer service call failed: " + err.Error(), true
	}
	return answer, false
}

func (m *Manager) scheduleReveal(nodeID string) {
	if m.hooks == nil {
		return
	}
	m.pending.Add(1)
	m.scheduler.AfterFunc(m.delay, func() {
		defer m.pending.Done()
		m.hooks.RevealDue(nodeID)
	})
}

// ShareReflection appends a reflection in any phase
func (m *Manager) ShareReflection(t Target, text string) (Result, error) {
	return m.reflect(t, ShareReflection{Text: text})
}

// DeepReflection appends a reflection from the secondary input surface
func (m *Manager) DeepReflection(t Target, text string) (Result, error) {
	return m.reflect(t, DeepReflection{Text: text})
}

func (m *Manager) reflect(t Target, ev Event) (Result, error) {
	state, effects := m.apply(t, ev)
	res := Result{State: state}
	for _, e := range effects {
		if e.Kind == EffectToast {
			res.Toasts = appendToast(res.Toasts, e.Toast)
		}
		if e.Err != nil {
			return res, e.Err
		}
	}
	return res, nil
}

// Wait blocks until every scheduled reveal has run
func (m *Manager) Wait() {
	m.pending.Wait()
}

func appendToast(toasts []Toast, t Toast) []Toast {
	if t.Message == "" {
		return toasts
	}
	return append(toasts, t)
}
