package models

import "time"

// Flip is an immutable record of a status transition. Processed stays nil
// until alerts for the transition have been dispatched; the alert scheduler
// polls for rows where it is nil.
type Flip struct {
	ID        uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID   uint       `json:"owner_id" gorm:"not null;index"`
	Created   time.Time  `json:"created" gorm:"not null"`
	Processed *time.Time `json:"processed" gorm:"index"`
	OldStatus string     `json:"old_status" gorm:"not null"`
	NewStatus string     `json:"new_status" gorm:"not null"`

	Owner Check `json:"-" gorm:"foreignKey:OwnerID"`
}

// TableName specifies the table name for Flip
func (Flip) TableName() string {
	return "flips"
}
