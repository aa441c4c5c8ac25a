package distill

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {
	tk := NewTracker(3)
	assert.Equal(t, 3, tk.Total())
	assert.Equal(t, StatusRunning, tk.Status())
	assert.False(t, tk.Interrupted())

	tk.Progress(1, "a")
	tk.Progress(2, "b")
	tk.Progress(1, "late")
	assert.Equal(t, 2, tk.Done(), "done never decreases")

	tk.Failure(&ExportError{Op: "write page", Path: "x.htm", Err: errors.New("disk full")})
	assert.Len(t, tk.Errors(), 1)
	assert.EqualError(t, tk.Errors()[0], "write page x.htm: disk full")

	tk.Interrupt()
	assert.True(t, tk.Interrupted())

	tk.Finish(StatusInterrupted)
	tk.Finish(StatusDone)
	assert.Equal(t, StatusInterrupted, tk.Status())

	n := 0
	for range tk.Updates() {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestExportErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(&ExportError{Op: "copy highres", Path: "a_h.jpg", Err: base})
	assert.ErrorIs(t, err, base)
}
