// Package selection provides the search/select coordination bus nodes
// subscribe to instead of reaching for a shared tree root.
package selection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/metrics"
)

// CommandType is the verb of a select broadcast.
type CommandType string

const (
	Select   CommandType = "SELECT"
	Deselect CommandType = "DESELECT"
)

// ParseCommandType accepts either verb case-insensitively.
func ParseCommandType(s string) (CommandType, error) {
	switch strings.ToUpper(s) {
	case string(Select):
		return Select, nil
	case string(Deselect):
		return Deselect, nil
	}
	return "", fmt.Errorf("unknown select command %q", s)
}

// Command asks every node whose value[Field] equals Value to take the selection state Type implies.
type Command struct {
	Type  CommandType `yaml:"type" json:"type"`
	Field string      `yaml:"field" json:"field"`
	Value string      `yaml:"value" json:"value"`
}

type subscription[M any] struct {
	id string
	fn func(M)
}

type channel[M any] struct {
	name string
	subs []subscription[M]
}

// Bus is a two-channel broadcaster. Delivery is synchronous and in
// subscription order over a snapshot, so handlers may subscribe or
// unsubscribe while a message is being delivered.
type Bus struct {
	mu     sync.Mutex
	search channel[hierarchy.Criteria]
	sel    channel[Command]
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		search: channel[hierarchy.Criteria]{name: "search"},
		sel:    channel[Command]{name: "select"},
	}
}

// SubscribeSearch registers fn for search broadcasts. Call the returned func to unsubscribe.
func (b *Bus) SubscribeSearch(fn func(hierarchy.Criteria)) (unsubscribe func()) {
	return subscribe(b, &b.search, fn)
}

// SubscribeSelect registers fn for select broadcasts. Call the returned func to unsubscribe.
func (b *Bus) SubscribeSelect(fn func(Command)) (unsubscribe func()) {
	return subscribe(b, &b.sel, fn)
}

// PublishSearch delivers c to every search subscriber.
func (b *Bus) PublishSearch(c hierarchy.Criteria) {
	publish(b, &b.search, c)
}

// PublishSelect delivers cmd to every select subscriber.
func (b *Bus) PublishSelect(cmd Command) {
	publish(b, &b.sel, cmd)
}

// Subscribers returns the number of live search and select subscriptions.
func (b *Bus) Subscribers() (search, sel int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.search.subs), len(b.sel.subs)
}

func subscribe[M any](b *Bus, ch *channel[M], fn func(M)) func() {
	id := uuid.NewString()
	b.mu.Lock()
	ch.subs = append(ch.subs, subscription[M]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range ch.subs {
				if s.id == id {
					ch.subs = append(ch.subs[:i:i], ch.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func publish[M any](b *Bus, ch *channel[M], msg M) {
	b.mu.Lock()
	snapshot := make([]subscription[M], len(ch.subs))
	copy(snapshot, ch.subs)
	b.mu.Unlock()

	metrics.BusMessages.WithLabelValues(ch.name).Inc()
	for _, s := range snapshot {
		s.fn(msg)
	}
}
