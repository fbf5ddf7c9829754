package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AlertStatus
		ok       bool
	}{
		{StatusPending, StatusAcknowledged, true},
		{StatusPending, StatusResolved, true},
		{StatusPending, StatusCancelled, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusAcknowledged, StatusCancelled, true},
		{StatusAcknowledged, StatusPending, false},
		{StatusResolved, StatusAcknowledged, false},
		{StatusResolved, StatusCancelled, false},
		{StatusCancelled, StatusResolved, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, Terminal(StatusPending))
	assert.False(t, Terminal(StatusAcknowledged))
	assert.True(t, Terminal(StatusResolved))
	assert.True(t, Terminal(StatusCancelled))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusCancelled))
	assert.False(t, ValidStatus("open"))
	assert.False(t, ValidStatus(""))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(PriorityLow))
	assert.True(t, ValidPriority(PriorityCritical))
	assert.False(t, ValidPriority("urgent"))
	assert.False(t, ValidPriority(""))
}
