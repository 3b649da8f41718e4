package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SendingError marks a notification row whose delivery attempt is still in
// flight. The row is created before the transport is invoked so external
// status polling can observe the attempt, then updated with the outcome.
const SendingError = "Sending"

// Notification records one alert attempt on one channel. OwnerID is nil for
// test sends. An empty Error means the attempt succeeded.
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Code        string    `json:"code" gorm:"type:uuid;not null"`
	OwnerID     *uint     `json:"owner_id" gorm:"index"`
	ChannelID   uint      `json:"channel_id" gorm:"not null;index"`
	CheckStatus string    `json:"check_status" gorm:"not null"`
	Created     time.Time `json:"created" gorm:"not null"`
	Error       string    `json:"error"`

	Channel Channel `json:"-" gorm:"foreignKey:ChannelID"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns a code if one was not set (GORM hook)
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.Code == "" {
		n.Code = uuid.NewString()
	}
	return nil
}
