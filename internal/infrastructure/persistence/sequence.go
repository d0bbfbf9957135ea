package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// GormSequencer implements shared.Sequencer on the number_sequences table.
// Next claims a number with a single atomic upsert and commits immediately,
// outside any business transaction. If the surrounding operation later fails,
// the claimed number is lost; gaps in a series are tolerated.
type GormSequencer struct {
	db *gorm.DB
}

// NewGormSequencer creates a new GormSequencer
func NewGormSequencer(db *gorm.DB) *GormSequencer {
	return &GormSequencer{db: db}
}

// Next claims and returns the next number for a series
func (s *GormSequencer) Next(ctx context.Context, series string) (int, error) {
	if series == "" {
		return 0, shared.NewValidationError("Sequence series cannot be empty")
	}

	var value int
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO number_sequences (series, current_value, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (series)
		DO UPDATE SET current_value = number_sequences.current_value + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING current_value`, series).
		Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("failed to claim next number for series %s: %w", series, err)
	}
	return value, nil
}

// Ensure GormSequencer implements shared.Sequencer
var _ shared.Sequencer = (*GormSequencer)(nil)
