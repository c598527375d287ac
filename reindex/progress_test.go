package reindex

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	t.Run("advances to completion", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Start(0)

		tracker.Advance(25)
		tracker.Advance(50)
		tracker.Advance(100)

		assert.Greater(t, tracker.Elapsed(), time.Duration(0))
		assert.Contains(t, buf.String(), "\rReindexing: 25/100 chunks (25.0%)")
		assert.Contains(t, buf.String(), "100/100 chunks (100.0%)")
	})

	t.Run("finish completes the line", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Start(0)
		tracker.Advance(75)
		tracker.Finish()

		out := buf.String()
		assert.Contains(t, out, "100/100")
		assert.True(t, strings.HasSuffix(out, "\n"))
	})

	t.Run("resumed chunks count toward the total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Start(60)

		tracker.Advance(65)
		assert.Empty(t, buf.String(), "interval counts from the resume point")

		tracker.Advance(70)
		assert.Contains(t, buf.String(), "70/100 chunks (70.0%)")
	})

	t.Run("zero total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 0, 10)
		tracker.Start(0)
		tracker.Finish()
		assert.Contains(t, buf.String(), "0/0")
	})

	t.Run("caps at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Start(0)
		tracker.Advance(150)
		assert.Contains(t, buf.String(), "100/100")
		assert.NotContains(t, buf.String(), "150")
	})

	t.Run("not started", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Advance(20)
		tracker.Finish()
		assert.Empty(t, buf.String())
		assert.Zero(t, tracker.Elapsed())
	})

	t.Run("interval below one reports every chunk", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 3, 0)
		tracker.Start(0)
		tracker.Advance(1)
		tracker.Advance(2)
		assert.Equal(t, 2, strings.Count(buf.String(), "\rReindexing"))
	})
}
