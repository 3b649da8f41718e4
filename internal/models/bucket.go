package models

import "time"

// TokenBucket is keyed rate-limit state, one row per limited key, created
// lazily on first use. Tokens is capped at 1.0 and may go negative when a
// caller is charged for a denied request.
type TokenBucket struct {
	ID      uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Value   string    `json:"value" gorm:"size:80;uniqueIndex;not null"`
	Tokens  float64   `json:"tokens" gorm:"default:1.0"`
	Updated time.Time `json:"updated" gorm:"not null"`
}

// TableName specifies the table name for TokenBucket
func (TokenBucket) TableName() string {
	return "token_buckets"
}
