// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single updating progress line for a reindex run.
// Chunks finished by an earlier, interrupted run count toward the total but
// not toward the rate.
type ProgressTracker struct {
	mu       sync.Mutex
	out      io.Writer
	total    int
	every    int
	resumed  int
	done     int
	reported int
	began    time.Time
}

// NewProgressTracker reports to out every `every` chunks.
func NewProgressTracker(out io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{
		out:   out,
		total: total,
		every: max(every, 1),
	}
}

// Start begins timing with resumed chunks already done.
func (p *ProgressTracker) Start(resumed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.began = time.Now()
	p.resumed = min(resumed, p.total)
	p.done = p.resumed
	p.reported = p.resumed
}

// Advance records the absolute number of chunks done.
func (p *ProgressTracker) Advance(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.began.IsZero() {
		return
	}
	p.done = min(done, p.total)
	if p.done-p.reported >= p.every {
		p.print()
		p.reported = p.done
	}
}

// Finish prints the final line and terminates it.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.began.IsZero() {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.out)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.began.IsZero() {
		return 0
	}
	return time.Since(p.began)
}

func (p *ProgressTracker) print() {
	var rate, pct float64
	if secs := time.Since(p.began).Seconds(); secs > 0 {
		rate = float64(p.done-p.resumed) / secs
	}
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	fmt.Fprintf(p.out, "\rReindexing: %d/%d chunks (%.1f%%) - %.1f chunks/s", p.done, p.total, pct, rate)
}
