package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a listing posted by a user. The owner never changes.
type Item struct {
	ID          int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     int64           `json:"owner_id" gorm:"not null;index"`
	Title       string          `json:"title" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Category    string          `json:"category" gorm:"size:100;not null;index"`
	ImageURL    *string         `json:"image_url" gorm:"size:512"`
	// ImageStored marks ImageURL as written by the image store. Only such
	// images are deleted with the item.
	ImageStored bool            `json:"-" gorm:"not null;default:false"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Relations
	Owner *User `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}
