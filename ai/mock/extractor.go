package mock

import (
	"context"
	"regexp"
	"sync"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	datePattern  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	timePattern  = regexp.MustCompile(`\b([01]\d|2[0-3]):[0-5]\d\b`)
	namePattern  = regexp.MustCompile(`(?i:call me|my name is|i am|i'm)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
)

// MockBookingExtractor is a test double for ai.BookingExtractor.
type MockBookingExtractor struct {
	// ExtractBookingFunc is called by ExtractBooking if set.
	// If nil, uses default pattern matching.
	ExtractBookingFunc func(ctx context.Context, text string) (ai.Extraction, error)

	mu        sync.Mutex
	callCount int
	texts     []string
}

var _ ai.BookingExtractor = (*MockBookingExtractor)(nil)

// NewMockBookingExtractor creates a mock booking extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockBookingExtractor() *MockBookingExtractor {
	return &MockBookingExtractor{}
}

// ExtractBooking finds booking fields with regular expressions.
func (m *MockBookingExtractor) ExtractBooking(ctx context.Context, text string) (ai.Extraction, error) {
	m.mu.Lock()
	m.callCount++
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.ExtractBookingFunc != nil {
		return m.ExtractBookingFunc(ctx, text)
	}

	info := core.BookingInfo{
		Email: emailPattern.FindString(text),
		Date:  datePattern.FindString(text),
		Time:  timePattern.FindString(text),
	}
	if match := namePattern.FindStringSubmatch(text); match != nil {
		info.Name = match[1]
	}
	if info.IsEmpty() {
		return ai.NoData{}, nil
	}
	return ai.Parsed{Info: info}, nil
}

// CallCount returns the number of times ExtractBooking was called.
func (m *MockBookingExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns every text passed to ExtractBooking in call order.
func (m *MockBookingExtractor) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call count and custom functions.
func (m *MockBookingExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.ExtractBookingFunc = nil
}
