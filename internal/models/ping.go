package models

import "time"

// Ping kinds. A successful ping has an empty kind.
const (
	PingStart  = "start"
	PingFail   = "fail"
	PingIgnore = "ign"
)

// Ping is an immutable record of one received signal. N is 1-based and
// strictly increasing per check. The body lives either inline in Body or,
// when it was large and object storage is configured, in the archive
// addressed by (check code, N) — never both.
type Ping struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID    uint      `json:"owner_id" gorm:"not null;index:idx_ping_owner_n"`
	N          int       `json:"n" gorm:"index:idx_ping_owner_n"`
	Created    time.Time `json:"created" gorm:"not null"`
	Kind       string    `json:"kind"`
	Scheme     string    `json:"scheme" gorm:"default:http"`
	RemoteAddr string    `json:"remote_addr"`
	Method     string    `json:"method"`
	UA         string    `json:"ua"`
	Body       []byte    `json:"-"`
	ObjectSize int       `json:"object_size"`
	ExitStatus *int      `json:"exitstatus" gorm:"column:exitstatus"`

	Owner Check `json:"-" gorm:"foreignKey:OwnerID"`
}

// TableName specifies the table name for Ping
func (Ping) TableName() string {
	return "pings"
}

// HasBody reports whether the ping carried a payload, inline or archived.
func (p *Ping) HasBody() bool {
	return len(p.Body) > 0 || p.ObjectSize > 0
}
