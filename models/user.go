package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account that can run validations.
type User struct {
	gorm.Model

	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Name         *string `json:"name,omitempty"`

	// Account status
	IsActive bool   `gorm:"default:true" json:"is_active"`
	Role     string `gorm:"default:'user'" json:"role"` // user, admin

	// Credit-based usage: one credit per validated address.
	VerifyCredits   int `gorm:"default:1000" json:"verify_credits"`
	CreditsConsumed int `gorm:"default:0" json:"credits_consumed"`

	// Stripe integration
	StripeCustomerID *string `gorm:"index" json:"stripe_customer_id,omitempty"`
	DefaultCurrency  string  `gorm:"default:'usd'" json:"default_currency"`

	TokenVersion uint `gorm:"default:0" json:"-"`

	// Relations
	ValidationJobs []ValidationJob `gorm:"foreignKey:UserID" json:"validation_jobs,omitempty"`
}

func (u *User) IsAdmin() bool { return u.Role == "admin" }

// RefreshToken tracks issued refresh tokens so sessions can be revoked.
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"not null"`
	SessionID string    `gorm:"index;not null"`
	UserAgent string    `gorm:"size:512"`
	IPAddress string    `gorm:"size:45"` // Supports IPv6
	ExpiresAt time.Time `gorm:"not null"`
	IsRevoked bool      `gorm:"default:false;not null"`
}

// CreditTransaction records a credit purchase. Per-verification debits are
// not recorded here; they show up in User.CreditsConsumed.
type CreditTransaction struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Type        string `gorm:"not null" json:"type"` // purchase, debit
	Credits     int    `gorm:"not null" json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `gorm:"default:'usd'" json:"currency"`

	StripePaymentIntentID *string `gorm:"index" json:"stripe_payment_intent_id,omitempty"`
	Description           string  `json:"description"`
}
