package jobmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryAddAndGet(t *testing.T) {
	h := NewHistory(3)

	h.Add("job-1", StatusFinished)
	h.Add("job-2", StatusFailed)

	entry, found := h.Get("job-1")
	assert.True(t, found)
	assert.Equal(t, StatusFinished, entry.Status)

	_, found = h.Get("missing")
	assert.False(t, found)

	assert.Equal(t, 2, h.Len())
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(2)

	h.Add("job-1", StatusFinished)
	h.Add("job-2", StatusFailed)
	h.Add("job-3", StatusTimeout)

	assert.Equal(t, 2, h.Len())

	_, found := h.Get("job-1")
	assert.False(t, found, "oldest entry should have been evicted")

	entry, found := h.Get("job-3")
	assert.True(t, found)
	assert.Equal(t, StatusTimeout, entry.Status)
}
