package domain

import (
	"fmt"
	"strings"
	"time"
)

// Journey is one exploration thread around a topic word
type Journey struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	CoreQuestion string          `json:"core_question"`
	Description  string          `json:"description,omitempty"`
	NodeIDs      []string        `json:"node_ids"`
	Tags         []string        `json:"tags,omitempty"`
	Metadata     JourneyMetadata `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// JourneyMetadata holds the topic intake results and the angle rotation state
type JourneyMetadata struct {
	HomeWord         string   `json:"home_word"`
	HomeOptions      []string `json:"home_options,omitempty"`
	SelectedOption   string   `json:"selected_option"`
	AvailableAngles  []string `json:"available_angles,omitempty"`
	AvailableStyles  []string `json:"available_styles,omitempty"`
	UsedAngles       []string `json:"used_angles,omitempty"`
	ExplorationCount int      `json:"exploration_count"`
	Difficulty       string   `json:"difficulty,omitempty"`
	TopicResult      string   `json:"topic_result,omitempty"`
}

// HasNode reports whether the journey already lists the node
func (j *Journey) HasNode(id string) bool {
	for _, n := range j.NodeIDs {
		if n == id {
			return true
		}
	}
	return false
}

// AppendNode adds a node id once, keeping creation order
func (j *Journey) AppendNode(id string) {
	if !j.HasNode(id) {
		j.NodeIDs = append(j.NodeIDs, id)
	}
}

// Node is a single question-and-answer unit of a journey
type Node struct {
	ID        string   `json:"id"`
	JourneyID string   `json:"journey_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Angle     string   `json:"angle,omitempty"`
	Mode      Mode     `json:"mode"`
	Manual    bool     `json:"manual,omitempty"`
	Position  Position `json:"position"`
	// AnswerText and AnsweredAt are set once by RecordAnswer. Content only renders them.
	AnswerText string     `json:"answer,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

const (
	questionPrefix = "Q: "
	answerPrefix   = "\nA: "
)

// QuestionContent formats the initial content of a node
func QuestionContent(question string) string {
	return questionPrefix + question
}

// Question returns the question the node content starts with. Free text may
// contain anything; only a recorded answer is stripped from the end.
func (n *Node) Question() string {
	c := strings.TrimPrefix(n.Content, questionPrefix)
	if n.Answered() {
		c = strings.TrimSuffix(c, answerPrefix+n.AnswerText)
	}
	return c
}

// Answered reports whether RecordAnswer ran
func (n *Node) Answered() bool {
	return n.AnsweredAt != nil
}

// Answer returns the recorded answer, or "" when none was recorded
func (n *Node) Answer() string {
	return n.AnswerText
}

// RecordAnswer stores the answer and appends it to the content. It only succeeds once.
func (n *Node) RecordAnswer(answer string, now time.Time) error {
	if n.Answered() {
		return fmt.Errorf("node %s: %w", n.ID, ErrAnswerRecorded)
	}
	at := now
	n.AnswerText = answer
	n.AnsweredAt = &at
	n.Content = n.Content + answerPrefix + answer
	n.UpdatedAt = now
	return nil
}

// Position places a node on the visualization grid
type Position struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Col int     `json:"col"`
	Row int     `json:"row"`
}

// Edge is a directed connection between two nodes by creation index
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}
