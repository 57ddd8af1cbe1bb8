package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pbaille/wayfind/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnswerer struct {
	answer string
	err    error
	calls  []string
}

func (f *fakeAnswerer) AskAngle(_ context.Context, angle, mode, input string) (string, error) {
	f.calls = append(f.calls, angle+"|"+mode+"|"+input)
	return f.answer, f.err
}

type recordingHooks struct {
	mu       sync.Mutex
	answered map[string]string
	revealed []string
}

func newHooks() *recordingHooks {
	return &recordingHooks{answered: map[string]string{}}
}

func (h *recordingHooks) Answered(_ context.Context, nodeID, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.answered[nodeID] = answer
}

func (h *recordingHooks) RevealDue(nodeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revealed = append(h.revealed, nodeID)
}

func (h *recordingHooks) revealCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.revealed)
}

// manualScheduler holds callbacks until fire is called
type manualScheduler struct {
	delays []time.Duration
	funcs  []func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *manualScheduler) fire() {
	funcs := s.funcs
	s.funcs = nil
	for _, f := range funcs {
		f()
	}
}

var target = Target{NodeID: "n1", Question: "why?", Angle: "history", Mode: domain.ModePlayful}

func TestManager_AskSchedulesRevealAfterAnswer(t *testing.T) {
	ans := &fakeAnswerer{answer: "because"}
	hooks := newHooks()
	sched := &manualScheduler{}
	m := NewManager(ans, hooks, Options{Scheduler: sched})

	res, err := m.Ask(context.Background(), target, "tell me")
	require.NoError(t, err)
	assert.Equal(t, PhaseExplored, res.State.Phase)
	assert.Equal(t, []string{"history|游戏模式|tell me"}, ans.calls)
	assert.Equal(t, "because", hooks.answered["n1"])
	require.NotEmpty(t, res.Toasts)
	assert.Equal(t, ToastSuccess, res.Toasts[0].Level)

	assert.Equal(t, []time.Duration{RevealDelay}, sched.delays)
	assert.Equal(t, 0, hooks.revealCount(), "reveal waits for the delay")
	sched.fire()
	m.Wait()
	assert.Equal(t, 1, hooks.revealCount())
}

// ctxAnswerer fails like a real client would once its context is done
type ctxAnswerer struct{}

func (ctxAnswerer) AskAngle(ctx context.Context, angle, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "about " + angle, nil
}

func TestManager_AskSurvivesCanceledCaller(t *testing.T) {
	hooks := newHooks()
	m := NewManager(ctxAnswerer{}, hooks, Options{Scheduler: &manualScheduler{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := m.Ask(ctx, target, "tell me")
	require.NoError(t, err)
	assert.Equal(t, PhaseExplored, res.State.Phase)
	assert.Equal(t, "about history", hooks.answered["n1"])
	last := res.State.History[len(res.State.History)-1]
	assert.Equal(t, "about history", last.Text)
}

func TestManager_AnswerFailureBecomesAnswer(t *testing.T) {
	ans := &fakeAnswerer{err: errors.New("connection refused")}
	hooks := newHooks()
	sched := &manualScheduler{}
	m := NewManager(ans, hooks, Options{Scheduler: sched})

	res, err := m.Ask(context.Background(), target, "tell me")
	require.NoError(t, err)
	assert.Equal(t, PhaseExplored, res.State.Phase)

	last := res.State.History[len(res.State.History)-1]
	assert.Equal(t, EntryAnswer, last.Kind)
	assert.Equal(t, "answer service call failed: connection refused", last.Text)
	assert.Equal(t, last.Text, hooks.answered["n1"])
	assert.Len(t, sched.funcs, 1)
	sched.fire()
	m.Wait()
}

func TestManager_SecondAskIsRejected(t *testing.T) {
	ans := &fakeAnswerer{answer: "a"}
	sched := &manualScheduler{}
	m := NewManager(ans, newHooks(), Options{Scheduler: sched})

	first, err := m.Ask(context.Background(), target, "one")
	require.NoError(t, err)

	second, err := m.Ask(context.Background(), target, "two")
	assert.ErrorIs(t, err, domain.ErrAlreadyAsked)
	assert.Equal(t, first.State.History, second.State.History)
	require.Len(t, second.Toasts, 1)
	assert.Equal(t, ToastWarning, second.Toasts[0].Level)
	assert.Len(t, ans.calls, 1)
	assert.Len(t, sched.funcs, 1)
	sched.fire()
	m.Wait()
}

func TestManager_EmptyAsk(t *testing.T) {
	m := NewManager(&fakeAnswerer{}, newHooks(), Options{Scheduler: &manualScheduler{}})
	before := m.Open(target)

	res, err := m.Ask(context.Background(), target, "")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.False(t, res.State.HasAskedQuestion())
	assert.Equal(t, before.History, res.State.History)
}

func TestManager_Reflections(t *testing.T) {
	m := NewManager(&fakeAnswerer{answer: "a"}, nil, Options{})

	res, err := m.ShareReflection(target, "first thought")
	require.NoError(t, err)
	assert.Equal(t, EntryShare, res.State.History[len(res.State.History)-1].Kind)

	res, err = m.DeepReflection(target, "deeper")
	require.NoError(t, err)
	assert.Equal(t, EntryReflection, res.State.History[len(res.State.History)-1].Kind)
	require.Len(t, res.Toasts, 1)
	assert.Equal(t, "reflection saved", res.Toasts[0].Message)

	_, err = m.DeepReflection(target, "")
	assert.ErrorIs(t, err, domain.ErrEmptyReflection)
}

func TestManager_LookupAndForget(t *testing.T) {
	m := NewManager(nil, nil, Options{})
	_, ok := m.Lookup("n1")
	assert.False(t, ok)

	m.Open(target)
	s, ok := m.Lookup("n1")
	require.True(t, ok)
	assert.Equal(t, "Q: why?", s.History[0].Text)

	m.Forget("n1")
	_, ok = m.Lookup("n1")
	assert.False(t, ok)
}

func TestManager_TimerSchedulerRunsInBackground(t *testing.T) {
	hooks := newHooks()
	m := NewManager(&fakeAnswerer{answer: "a"}, hooks, Options{RevealDelay: 10 * time.Millisecond})

	_, err := m.Ask(context.Background(), target, "go")
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, 1, hooks.revealCount())
}

func TestManager_NoAnswerer(t *testing.T) {
	sched := &manualScheduler{}
	m := NewManager(nil, newHooks(), Options{Scheduler: sched})
	res, err := m.Ask(context.Background(), target, "go")
	require.NoError(t, err)
	assert.Equal(t, PhaseExplored, res.State.Phase)
	sched.fire()
	m.Wait()
}

func TestManager_RestoredDialogRejectsAsk(t *testing.T) {
	answerer := &fakeAnswerer{answer: "unused"}
	m := NewManager(answerer, newHooks(), Options{Scheduler: &manualScheduler{}})

	restored := target
	restored.Answered = true
	restored.Answer = "stored answer"

	s := m.Open(restored)
	assert.Equal(t, PhaseExplored, s.Phase)
	assert.Equal(t, []EntryKind{EntryPrompt, EntryAnswer}, kinds(s))

	_, err := m.Ask(context.Background(), restored, "again?")
	assert.ErrorIs(t, err, domain.ErrAlreadyAsked)
	assert.Empty(t, answerer.calls)
}
