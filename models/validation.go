package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"mailprobe/verifier"
)

// ValidationJob represents a bulk validation run.
type ValidationJob struct {
	gorm.Model
	PublicID string `gorm:"uniqueIndex;not null" json:"public_id"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`

	Name   string `json:"name"`
	Source string `gorm:"default:'api'" json:"source"`          // api, upload, cli
	Status string `gorm:"default:'pending'" json:"status"`      // pending, processing, completed, failed
	Error  string `json:"error,omitempty"`

	// Input addresses, one per line, kept so a crashed job can be resumed
	// by the background worker.
	Input string `gorm:"type:text" json:"-"`

	Concurrency int `json:"concurrency"`

	TotalCount         int `gorm:"default:0" json:"total_count"`
	ProcessedCount     int `gorm:"default:0" json:"processed_count"`
	DeliverableCount   int `gorm:"default:0" json:"deliverable_count"`
	UndeliverableCount int `gorm:"default:0" json:"undeliverable_count"`
	UnknownCount       int `gorm:"default:0" json:"unknown_count"`
	InvalidCount       int `gorm:"default:0" json:"invalid_count"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Records []ValidationRecord `gorm:"foreignKey:JobID" json:"records,omitempty"`
}

// InputEmails splits the stored input back into addresses.
func (j *ValidationJob) InputEmails() []string {
	var emails []string
	for _, line := range strings.Split(j.Input, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			emails = append(emails, line)
		}
	}
	return emails
}

// SetInputEmails stores the address list and total counter.
func (j *ValidationJob) SetInputEmails(emails []string) {
	j.Input = strings.Join(emails, "\n")
	j.TotalCount = len(emails)
}

// ValidationRecord is one engine result flattened for storage. The
// tri-state booleans stay nullable in the database so "unknown" is never
// conflated with false.
type ValidationRecord struct {
	gorm.Model
	JobID  *uint `gorm:"index" json:"job_id,omitempty"` // nil for single checks
	UserID uint  `gorm:"not null;index" json:"user_id"`

	Email           string  `gorm:"not null;index" json:"email"`
	NormalizedEmail *string `json:"normalized_email"`
	Domain          *string `gorm:"index" json:"domain"`

	IsValidSyntax   bool `json:"is_valid_syntax"`
	DomainHasMX     bool `json:"domain_has_mx"`
	SMTPConnectable bool `json:"smtp_connectable"`

	IsDeliverable *bool `json:"is_deliverable"`
	IsCatchAll    *bool `json:"is_catch_all"`
	IsDisposable  *bool `json:"is_disposable"`

	Status string  `gorm:"not null;index" json:"status"`
	Reason *string `json:"reason"`

	MXHosts string `json:"mx_hosts"` // semicolon-joined, attempt order
	Logs    string `gorm:"type:text" json:"-"`

	Source string `gorm:"default:'api'" json:"source"`
}

// NewValidationRecord flattens an engine result for persistence.
func NewValidationRecord(userID uint, jobID *uint, source string, r *verifier.Result) ValidationRecord {
	return ValidationRecord{
		JobID:           jobID,
		UserID:          userID,
		Email:           r.Email,
		NormalizedEmail: r.NormalizedEmail,
		Domain:          r.Domain,
		IsValidSyntax:   r.IsValidSyntax,
		DomainHasMX:     r.DomainHasMX,
		SMTPConnectable: r.SMTPConnectable,
		IsDeliverable:   r.IsDeliverable,
		IsCatchAll:      r.IsCatchAll,
		IsDisposable:    r.IsDisposable,
		Status:          r.Status,
		Reason:          r.Reason,
		MXHosts:         strings.Join(r.MXHosts, ";"),
		Logs:            strings.Join(r.Logs, "\n"),
		Source:          source,
	}
}

// CountFor bumps the job counter matching the record status.
func (j *ValidationJob) CountFor(status string) {
	j.ProcessedCount++
	switch status {
	case verifier.StatusDeliverable:
		j.DeliverableCount++
	case verifier.StatusUndeliverable:
		j.UndeliverableCount++
	case verifier.StatusInvalidSyntax, verifier.StatusInvalidDomain:
		j.InvalidCount++
	default:
		j.UnknownCount++
	}
}
