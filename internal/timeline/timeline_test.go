package timeline

import (
	"testing"
	"time"

	"lovechat-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, seq int64, at time.Time) *models.Message {
	return &models.Message{ID: id, Seq: seq, CreatedAt: at}
}

func ids(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Kind == KindDate {
			out = append(out, "@"+e.Day.Format("2006-01-02"))
			continue
		}
		out = append(out, e.Message.ID)
	}
	return out
}

func TestBuildOrdersRegardlessOfArrival(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m1 := msg("m1", 1, base)
	m2 := msg("m2", 2, base.Add(time.Minute))
	m3 := msg("m3", 3, base.Add(2*time.Minute))

	arrivals := [][]*models.Message{
		{m1, m2, m3},
		{m3, m2, m1},
		{m2, m3, m1},
	}
	for _, arrival := range arrivals {
		got := ids(Build(arrival, time.UTC))
		assert.Equal(t, []string{"@2024-05-01", "m1", "m2", "m3"}, got)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := []*models.Message{msg("b", 2, base.Add(time.Second)), msg("a", 1, base)}

	Build(in, time.UTC)

	assert.Equal(t, "b", in[0].ID)
}

func TestBuildTiesBrokenBySequence(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got := ids(Build([]*models.Message{msg("late", 9, at), msg("early", 4, at)}, time.UTC))
	assert.Equal(t, []string{"@2024-05-01", "early", "late"}, got)
}

func TestBuildInsertsDayMarkers(t *testing.T) {
	d1 := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	d2 := time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC)
	d3 := time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC)
	d4 := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

	got := ids(Build([]*models.Message{
		msg("a", 1, d1), msg("b", 2, d2), msg("c", 3, d3), msg("d", 4, d4),
	}, time.UTC))

	assert.Equal(t, []string{"@2024-05-01", "a", "@2024-05-02", "b", "c", "@2024-06-02", "d"}, got)
}

func TestBuildUsesLocationForDayBoundary(t *testing.T) {
	cairo := time.FixedZone("EET", 2*60*60)
	// 21:30 and 22:30 UTC fall on different days in UTC+2
	a := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)
	b := time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC)

	assert.Len(t, Build([]*models.Message{msg("a", 1, a), msg("b", 2, b)}, time.UTC), 3)

	entries := Build([]*models.Message{msg("a", 1, a), msg("b", 2, b)}, cairo)
	require.Len(t, entries, 4)
	assert.Equal(t, KindDate, entries[2].Kind)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil, nil))
}
