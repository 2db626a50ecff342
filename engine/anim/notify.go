package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// NotifySource identifies what produced a notify.
type NotifySource uint8

const (
	NotifyFromAsset NotifySource = iota
	NotifyFromMontage
	NotifyFromStateMachine
)

// AnimNotify is a notify that fired during a frame.
type AnimNotify struct {
	Name     string
	Time     float32
	Duration float32
	Weight   float32

	// Asset is the name of the asset or state machine that fired the notify.
	Asset  string
	Source NotifySource
}

// NotifyQueue collects the notifies fired while updating a graph. Montage notifies are
// held per slot until PostUpdate and only kept if their slot is relevant.
type NotifyQueue struct {
	notifies        []AnimNotify
	montageNotifies map[string][]AnimNotify
}

// Reset clears the queue for a new frame.
func (q *NotifyQueue) Reset() {
	q.notifies = q.notifies[:0]
	for slot, list := range q.montageNotifies {
		q.montageNotifies[slot] = list[:0]
	}
}

// AddAnimNotifies queues notifies fired by an asset contributing with the given weight.
// Notifies from irrelevant contributions are dropped.
//
// Parameters:
//   - events: the crossed notify events
//   - asset: the name of the asset that fired them
//   - weight: the asset's blend weight
func (q *NotifyQueue) AddAnimNotifies(events []model.NotifyEvent, asset string, weight float32) {
	if !common.IsRelevant(weight) {
		return
	}
	for _, e := range events {
		q.notifies = append(q.notifies, AnimNotify{Name: e.Name, Time: e.Time, Duration: e.Duration, Weight: weight, Asset: asset, Source: NotifyFromAsset})
	}
}

// AddMontageNotifies holds montage notifies until the slot's relevance for this frame is known.
//
// Parameters:
//   - slot: the slot the montage plays through
//   - events: the crossed notify events
//   - montage: the montage name
//   - weight: the montage weight
func (q *NotifyQueue) AddMontageNotifies(slot string, events []model.NotifyEvent, montage string, weight float32) {
	if !common.IsRelevant(weight) || len(events) == 0 {
		return
	}
	if q.montageNotifies == nil {
		q.montageNotifies = make(map[string][]AnimNotify)
	}
	for _, e := range events {
		q.montageNotifies[slot] = append(q.montageNotifies[slot], AnimNotify{Name: e.Name, Time: e.Time, Duration: e.Duration, Weight: weight, Asset: montage, Source: NotifyFromMontage})
	}
}

// AddStateNotify queues a state machine notify at full weight.
func (q *NotifyQueue) AddStateNotify(name, machine string) {
	if name == "" {
		return
	}
	q.notifies = append(q.notifies, AnimNotify{Name: name, Weight: 1, Asset: machine, Source: NotifyFromStateMachine})
}

// applyMontageNotifies moves held montage notifies into the queue for relevant slots.
func (q *NotifyQueue) applyMontageNotifies(relevant func(slot string) bool) {
	for _, slot := range common.SortedKeys(q.montageNotifies) {
		list := q.montageNotifies[slot]
		if len(list) > 0 && relevant(slot) {
			q.notifies = append(q.notifies, list...)
		}
		q.montageNotifies[slot] = list[:0]
	}
}

// Append adds every notify of other to q.
func (q *NotifyQueue) Append(other *NotifyQueue) {
	q.notifies = append(q.notifies, other.notifies...)
}

// Notifies returns the queued notifies.
func (q *NotifyQueue) Notifies() []AnimNotify { return q.notifies }
