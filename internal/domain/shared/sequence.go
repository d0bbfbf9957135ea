package shared

import "context"

// Sequencer hands out the next number in a named document series.
// Numbers are monotonically increasing per series; gaps are tolerated
// when a caller aborts after drawing a number.
type Sequencer interface {
	Next(ctx context.Context, series string) (int, error)
}
