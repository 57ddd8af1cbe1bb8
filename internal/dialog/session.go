// Package dialog implements the per-node question/reflection state machine.
//
// Apply is a pure transition function: it takes a State and an Event and returns the
// next State plus the effects the caller has to carry out (history changes, toasts,
// the answer request, the delayed reveal). Manager runs those effects.
package dialog

import (
	"slices"
	"strings"
	"time"

	"github.com/pbaille/wayfind/internal/domain"
)

// RevealDelay is the pause between an answer arriving and the next node appearing
const RevealDelay = 2 * time.Second

// Phase of a node dialog
type Phase string

const (
	PhaseAwaitingQuestion Phase = "awaiting_question"
	PhaseAnswering        Phase = "answering"
	PhaseExplored         Phase = "explored"
)

// EntryKind labels a history entry
type EntryKind string

const (
	EntryPrompt     EntryKind = "prompt"
	EntryQuestion   EntryKind = "question"
	EntryPending    EntryKind = "pending"
	EntryAnswer     EntryKind = "answer"
	EntryShare      EntryKind = "share"
	EntryReflection EntryKind = "reflection"
)

// Author of a history entry
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Entry is one rendered exchange in a dialog history
type Entry struct {
	Kind   EntryKind `json:"kind"`
	Author Author    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// State is the session-scoped dialog of one node. It is never persisted.
type State struct {
	NodeID  string  `json:"node_id"`
	Phase   Phase   `json:"phase"`
	History []Entry `json:"history"`
}

// HasAskedQuestion reports whether the single question was used up
func (s State) HasAskedQuestion() bool {
	return s.Phase != PhaseAwaitingQuestion
}

// NewState opens a dialog for a node, seeded with the node's question
func NewState(nodeID, question string, now time.Time) State {
	return State{
		NodeID: nodeID,
		Phase:  PhaseAwaitingQuestion,
		History: []Entry{
			{Kind: EntryPrompt, Author: AuthorAssistant, Text: domain.QuestionContent(question), At: now},
		},
	}
}

// RestoreState rebuilds the dialog of a node whose answer was already stored,
// e.g. after a restart. The question is used up.
func RestoreState(nodeID, question, answer string, at time.Time) State {
	s := NewState(nodeID, question, at)
	s.Phase = PhaseExplored
	s.History = append(s.History, Entry{Kind: EntryAnswer, Author: AuthorAssistant, Text: answer, At: at})
	return s
}

// Event is an input to Apply
type Event interface {
	event()
}

// AskQuestion uses the node's single question
type AskQuestion struct{ Input string }

// AnswerReceived resolves a pending question. Failed answers carry the error text.
type AnswerReceived struct {
	Text   string
	Failed bool
}

// ShareReflection appends a short reflection
type ShareReflection struct{ Text string }

// DeepReflection appends a reflection from the longer input surface
type DeepReflection struct{ Text string }

func (AskQuestion) event()     {}
func (AnswerReceived) event()  {}
func (ShareReflection) event() {}
func (DeepReflection) event()  {}

// EffectKind names an effect
type EffectKind string

const (
	EffectAppend         EffectKind = "append"
	EffectReplacePending EffectKind = "replace_pending"
	EffectRequestAnswer  EffectKind = "request_answer"
	EffectToast          EffectKind = "toast"
	EffectScheduleReveal EffectKind = "schedule_reveal"
)

// ToastLevel is the severity of a user notification
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
)

// Toast is a dismissible user notification
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

// Effect is work the caller of Apply must carry out
type Effect struct {
	Kind  EffectKind
	Entry Entry
	Input string
	Toast Toast
	Delay time.Duration
	// Err is set on rejections
	Err error
}

// Apply computes the transition for ev. It never mutates s.
func Apply(s State, ev Event, now time.Time) (State, []Effect) {
	switch e := ev.(type) {
	case AskQuestion:
		return applyAsk(s, e, now)
	case AnswerReceived:
		return applyAnswer(s, e, now)
	case ShareReflection:
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return s, []Effect{warn(domain.ErrEmptyReflection)}
		}
		entry := Entry{Kind: EntryShare, Author: AuthorUser, Text: text, At: now}
		return s.appended(entry), []Effect{{Kind: EffectAppend, Entry: entry}}
	case DeepReflection:
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return s, []Effect{warn(domain.ErrEmptyReflection)}
		}
		entry := Entry{Kind: EntryReflection, Author: AuthorUser, Text: text, At: now}
		return s.appended(entry), []Effect{
			{Kind: EffectAppend, Entry: entry},
			{Kind: EffectToast, Toast: Toast{Level: ToastSuccess, Message: "reflection saved"}},
		}
	}
	return s, nil
}

func applyAsk(s State, e AskQuestion, now time.Time) (State, []Effect) {
	if s.HasAskedQuestion() {
		return s, []Effect{warn(domain.ErrAlreadyAsked)}
	}
	input := strings.TrimSpace(e.Input)
	if input == "" {
		return s, []Effect{warn(domain.ErrEmptyQuestion)}
	}

	question := Entry{Kind: EntryQuestion, Author: AuthorUser, Text: input, At: now}
	pending := Entry{Kind: EntryPending, Author: AuthorAssistant, At: now}

	next := s.appended(question, pending)
	next.Phase = PhaseAnswering
	return next, []Effect{
		{Kind: EffectAppend, Entry: question},
		{Kind: EffectAppend, Entry: pending},
		{Kind: EffectRequestAnswer, Input: input},
	}
}

func applyAnswer(s State, e AnswerReceived, now time.Time) (State, []Effect) {
	if s.Phase != PhaseAnswering {
		return s, nil
	}
	answer := Entry{Kind: EntryAnswer, Author: AuthorAssistant, Text: e.Text, At: now}

	next := s
	next.History = slices.Clone(s.History)
	replaced := false
	for i := len(next.History) - 1; i >= 0; i-- {
		if next.History[i].Kind == EntryPending {
			next.History[i] = answer
			replaced = true
			break
		}
	}
	if !replaced {
		next.History = append(next.History, answer)
	}
	next.Phase = PhaseExplored

	status := Toast{Level: ToastSuccess, Message: "exploration complete, reflections are open"}
	if e.Failed {
		status = Toast{Level: ToastWarning, Message: "the answer service failed; the exploration still counts"}
	}
	return next, []Effect{
		{Kind: EffectReplacePending, Entry: answer},
		{Kind: EffectToast, Toast: status},
		{Kind: EffectScheduleReveal, Delay: RevealDelay},
	}
}

func (s State) appended(entries ...Entry) State {
	next := s
	next.History = append(slices.Clone(s.History), entries...)
	return next
}

func warn(err error) Effect {
	return Effect{Kind: EffectToast, Toast: Toast{Level: ToastWarning, Message: err.Error()}, Err: err}
}
