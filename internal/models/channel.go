package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel kinds with a wired transport.
const (
	KindEmail      = "email"
	KindWebhook    = "webhook"
	KindSlack      = "slack"
	KindMattermost = "mattermost"
	KindDiscord    = "discord"
	KindTelegram   = "telegram"
	KindPagerDuty  = "pd"
	KindPushover   = "po"
)

// ChannelKinds lists the supported channel kinds.
var ChannelKinds = []string{
	KindEmail,
	KindWebhook,
	KindSlack,
	KindMattermost,
	KindDiscord,
	KindTelegram,
	KindPagerDuty,
	KindPushover,
}

// Channel is a notification destination. Value holds the kind-specific
// configuration as JSON; it is parsed into a typed config at the boundary
// (channel creation and transport construction), never poked at with
// untyped lookups in business logic.
type Channel struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Code       string     `json:"code" gorm:"type:uuid;uniqueIndex;not null"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind" gorm:"not null;index"`
	Value      string     `json:"-" gorm:"type:text"`
	Disabled   bool       `json:"disabled" gorm:"default:false"`
	LastNotify *time.Time `json:"last_notify"`
	LastError  string     `json:"last_error"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Relationship (optional, for eager loading)
	Checks []*Check `json:"-" gorm:"many2many:check_channels"`
}

// TableName specifies the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// BeforeCreate assigns a code if one was not set (GORM hook)
func (ch *Channel) BeforeCreate(tx *gorm.DB) error {
	if ch.Code == "" {
		ch.Code = uuid.NewString()
	}
	return nil
}
