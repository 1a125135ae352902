package models

import "gorm.io/gorm"

// Part is a planned output fragment on disk, identifying a future file
// produced by some Job. Parts are write-once metadata created at planning
// time; the files they name are materialised later by workers.
//
// Part identity is nominally (CorrelationID, TargetIndex, Number), but that
// triple is not a storage key: an audio part and a target's first video
// chunk both carry Number=0 for the same target index, distinguished only
// by Filename (an audio part is never chunked, so it has no natural chunk
// number of its own). The index below is therefore non-unique, kept for
// lookup, not constraint.
type Part struct {
	ID ULID `gorm:"primarykey;type:varchar(26)" json:"id"`

	// CorrelationID is the owning request's correlation id.
	CorrelationID string `gorm:"type:varchar(36);not null;index:idx_part_lookup" json:"correlation_id"`

	// TargetIndex is the index into the owning request's Targets slice.
	TargetIndex int `gorm:"index:idx_part_lookup" json:"target_index"`

	// Number is the chunk number (0 for audio parts, which are never chunked).
	Number int `gorm:"index:idx_part_lookup" json:"number"`

	// Filename is the planned output path.
	Filename string `gorm:"type:text;not null" json:"filename"`

	CreatedAt Time `json:"created_at"`
}

// TableName returns the table name for Part.
func (Part) TableName() string {
	return "parts"
}

// BeforeCreate generates a ULID primary key if not already set.
func (p *Part) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewULID()
	}
	return nil
}
