package chat

import (
	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
)

// Monitor provides hooks to observe a chat turn.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(sessionID, query string)
	AfterHistory(history []core.Turn)
	AfterSearch(results []core.SearchResult)
	AfterThreshold(contexts []core.RetrievedContext)
	AfterAnswer(answer string)
	AfterExtraction(extraction ai.Extraction)
	BookingCreated(booking *core.Booking)
	Finish(response *Response)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                          {}
func (n *noopMonitor) AfterHistory(_ []core.Turn)                 {}
func (n *noopMonitor) AfterSearch(_ []core.SearchResult)          {}
func (n *noopMonitor) AfterThreshold(_ []core.RetrievedContext)   {}
func (n *noopMonitor) AfterAnswer(_ string)                       {}
func (n *noopMonitor) AfterExtraction(_ ai.Extraction)            {}
func (n *noopMonitor) BookingCreated(_ *core.Booking)             {}
func (n *noopMonitor) Finish(_ *Response)                         {}
