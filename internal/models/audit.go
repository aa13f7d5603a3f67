package models

import "time"

// AuditEntry is one append-only record of an enquiry's lifecycle.
type AuditEntry struct {
	EnquiryID string                 `json:"enquiry_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}
