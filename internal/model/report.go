package model

import "time"

// ReportStatus represents the moderation state of a report.
type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report flags an item for moderator review. ItemID is checked when the
// report is filed but is not a foreign key: deleting the item leaves the
// report in place.
type Report struct {
	ID         int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemID     int64        `json:"item_id" gorm:"not null;index"`
	ReporterID int64        `json:"reporter_id" gorm:"not null;index"`
	Reason     string       `json:"reason" gorm:"type:text;not null"`
	Status     ReportStatus `json:"status" gorm:"type:varchar(16);not null;default:'open';index"`
	CreatedAt  time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ReportDetail is a report joined with the item title and reporter name.
// Both are empty when the referenced row no longer exists.
type ReportDetail struct {
	Report
	ItemTitle    *string `json:"item_title"`
	ReporterName *string `json:"reporter_name"`
}
