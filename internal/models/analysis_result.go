package models

import "time"

// Finding severities as reported by the static-analysis tool.
const (
	SeverityError       = "error"
	SeverityWarning     = "warning"
	SeverityStyle       = "style"
	SeverityPerformance = "performance"
	SeverityPortability = "portability"
	SeverityInformation = "information"
)

// AnalysisResult is one static-analysis finding attached to a snippet. The
// analysis run owns these rows outright: a re-run replaces the whole set.
type AnalysisResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SnippetID  uint      `gorm:"not null;index" json:"snippet_id"`
	ErrorID    string    `gorm:"size:128" json:"error_id"`
	Message    string    `gorm:"type:text" json:"message"`
	LineNumber *int      `json:"line_number"`
	Severity   string    `gorm:"size:16" json:"severity"`
	ToolFailed bool      `gorm:"not null;default:false" json:"tool_failed"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidSeverity reports whether the value is one of the known severities.
func ValidSeverity(severity string) bool {
	switch severity {
	case SeverityError, SeverityWarning, SeverityStyle, SeverityPerformance, SeverityPortability, SeverityInformation:
		return true
	}
	return false
}
