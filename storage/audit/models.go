package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptRecord persists one committed operation.
type ReceiptRecord struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Sequence  uint64        `gorm:"uniqueIndex;not null"`
	Operation string        `gorm:"index;not null"`
	Caller    string        `gorm:"index;not null"`
	Timestamp time.Time     `gorm:"index"`
	Prev      string        `gorm:"size:64"`
	Digest    string        `gorm:"size:64;uniqueIndex"`
	Events    []EventRecord `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

func (ReceiptRecord) TableName() string { return "audit_receipts" }

// EventRecord persists one event of a receipt. Attributes hold the JSON
// encoded attribute map.
type EventRecord struct {
	ID         uint      `gorm:"primaryKey"`
	ReceiptID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Position   int       `gorm:"not null"`
	Type       string    `gorm:"index;not null"`
	Attributes string
}

func (EventRecord) TableName() string { return "audit_events" }

// AutoMigrate creates or updates the archive tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ReceiptRecord{}, &EventRecord{})
}
