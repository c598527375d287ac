// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.AnswerGenerator,
// ai.BookingExtractor and ai.AIProvider for use in unit tests. The mocks allow
// tests to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test", ai.PurposeQuery)
//
//	// Custom behavior injection
//	extractor := mock.NewMockBookingExtractor()
//	extractor.ExtractBookingFunc = func(ctx context.Context, text string) (ai.Extraction, error) {
//	    return ai.Malformed{Raw: "oops"}, nil
//	}
//
//	// Check call counts
//	count := extractor.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockAnswerGenerator: Echoes the query and the context size
//   - MockBookingExtractor: Finds emails, ISO dates, 24-hour times and
//     "call me"/"my name is" names with regular expressions
//   - MockProvider: Aggregates the three mock services
//
// All mocks are safe for concurrent use.
package mock
