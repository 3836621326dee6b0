// Package timeline orders channel messages and places calendar-day markers.
package timeline

import (
	"sort"
	"time"

	"lovechat-backend/internal/models"
)

// EntryKind distinguishes markers from messages
type EntryKind string

const (
	KindDate    EntryKind = "date"
	KindMessage EntryKind = "message"
)

// Entry is one rendered row: either a day marker or a message
type Entry struct {
	Kind    EntryKind       `json:"kind"`
	Day     time.Time       `json:"day,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

// Less orders by created_at, then by store insertion sequence
func Less(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// Sort orders messages in place regardless of arrival order
func Sort(messages []*models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// Build sorts a copy of messages and inserts a marker before the first message
// and whenever two consecutive messages fall on different days in loc.
func Build(messages []*models.Message, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]*models.Message, len(messages))
	copy(sorted, messages)
	Sort(sorted)

	entries := make([]Entry, 0, len(sorted)+1)
	var prev time.Time
	for i, msg := range sorted {
		day := startOfDay(msg.CreatedAt, loc)
		if i == 0 || !day.Equal(prev) {
			entries = append(entries, Entry{Kind: KindDate, Day: day})
			prev = day
		}
		entries = append(entries, Entry{Kind: KindMessage, Message: msg})
	}
	return entries
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
