package journey

import (
	"sync"
	"time"
)

// feedLimit bounds the notices kept per journey
const feedLimit = 20

// Notification tells the user that a node was unlocked
type Notification struct {
	JourneyID string    `json:"journey_id"`
	NodeID    string    `json:"node_id"`
	Angle     string    `json:"angle"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

type feed struct {
	mu      sync.Mutex
	notices map[string][]Notification
}

func newFeed() *feed {
	return &feed{notices: make(map[string][]Notification)}
}

func (f *feed) publish(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append(f.notices[n.JourneyID], n)
	if len(list) > feedLimit {
		list = list[len(list)-feedLimit:]
	}
	f.notices[n.JourneyID] = list
}

func (f *feed) list(journeyID string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.notices[journeyID]...)
}

func (f *feed) drop(journeyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notices, journeyID)
}
