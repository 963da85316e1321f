package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tool values a detection can carry. "Outreach" means the Outreach.io
// platform, not the generic sales activity with the same name.
const (
	ToolOutreach  = "Outreach"
	ToolSalesLoft = "SalesLoft"
	ToolBoth      = "Both"
	ToolNone      = "None"
)

// Confidence levels, lowest to highest.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Detection asserts that a company uses a specific sales tool, with the
// supporting evidence from the posting that produced it. The database keeps
// at most one row per (company, tool).
type Detection struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Company      string    `gorm:"type:varchar(255);uniqueIndex:idx_detections_company_tool" json:"company"`
	Tool         string    `gorm:"type:varchar(50);uniqueIndex:idx_detections_company_tool" json:"tool"`
	SignalType   string    `gorm:"type:varchar(100)" json:"signal_type"`
	Context      string    `gorm:"type:text" json:"context"`
	Confidence   string    `gorm:"type:varchar(20)" json:"confidence"`
	JobTitle     string    `gorm:"type:varchar(500)" json:"job_title"`
	JobURL       string    `gorm:"type:text" json:"job_url"`
	IdentifiedAt time.Time `json:"identified_at"`
}

func (d *Detection) TableName() string {
	return "detections"
}

// ValidTool reports whether s is one of the closed tool enumeration values.
func ValidTool(s string) bool {
	switch s {
	case ToolOutreach, ToolSalesLoft, ToolBoth, ToolNone:
		return true
	}
	return false
}

// ConfidenceRank maps a confidence level to an ordering value so upserts can
// keep the highest-confidence evidence. Unknown levels rank below "low".
func ConfidenceRank(level string) int {
	switch strings.ToLower(level) {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}
