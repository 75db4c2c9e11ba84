package domain

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar date format used for lab and exam dates
const DateLayout = "2006-01-02"

// Supplement categories
const (
	CategoryMorning   = "morning"
	CategoryAfternoon = "afternoon"
	CategoryNight     = "night"
)

// SupplementProtocol is a static catalog entry describing when a supplement should be taken
type SupplementProtocol struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Category  string   `json:"category"`
	StartHour int      `json:"start_hour"`
	EndHour   int      `json:"end_hour"`
	Benefit   string   `json:"benefit"`
	Aliases   []string `json:"aliases,omitempty"`
}

// Contains reports whether hour falls inside the inclusive hour range.
// A range whose start is after its end wraps past midnight.
func (p SupplementProtocol) Contains(hour int) bool {
	if p.StartHour <= p.EndHour {
		return hour >= p.StartHour && hour <= p.EndHour
	}
	return hour >= p.StartHour || hour <= p.EndHour
}

// SupplementEntry is one logged supplement intake
type SupplementEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Dosage   string    `json:"dosage"`
	TakenAt  time.Time `json:"taken_at"`
	Category string    `json:"category"`
	Notes    *string   `json:"notes,omitempty"`
}

// Vital sources
const (
	SourceManual   = "manual"
	SourceWearable = "wearable"
	SourceWebcam   = "webcam"
	SourceAgent    = "agent"
)

// VitalEntry is one vital sign measurement
type VitalEntry struct {
	ID         string    `json:"id"`
	VitalType  string    `json:"vital_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `json:"recorded_at"`
	Source     string    `json:"source"`
}

// LabResult is a single clinical marker from a lab report
type LabResult struct {
	ID             string  `json:"id"`
	Marker         string  `json:"marker"`
	Value          float64 `json:"value"`
	Unit           string  `json:"unit"`
	ReferenceRange string  `json:"reference_range"`
	Status         string  `json:"status"`
	LabName        string  `json:"lab_name,omitempty"`
	TestDate       string  `json:"test_date,omitempty"`
	PDFSource      string  `json:"pdf_source,omitempty"`
}

// LabDate is the most recent test date recorded for a marker
type LabDate struct {
	Marker string `json:"marker"`
	Date   string `json:"date"`
}

// ScheduledExam is a recommended future lab exam
type ScheduledExam struct {
	ID            string `json:"id,omitempty"`
	ExamType      string `json:"exam_type"`
	Reason        string `json:"reason"`
	ScheduledDate string `json:"scheduled_date"`
	TriggeredBy   string `json:"triggered_by"`
	Completed     bool   `json:"completed"`
}

// Message categories
const (
	MessageSupplementReminder = "supplement_reminder"
	MessageHealthInsight      = "health_insight"
	MessageSchedule           = "schedule"
	MessageCalmNudge          = "calm_nudge"
	MessageVoiceResponse      = "voice_response"
)

// Message priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ActionLogSupplement records a supplement intake when executed
const ActionLogSupplement = "log_supplement"

// AgentMessage is the contextual message shown or spoken to the user
type AgentMessage struct {
	Text     string       `json:"text"`
	Category string       `json:"category"`
	Priority string       `json:"priority"`
	Action   *AgentAction `json:"action,omitempty"`
}

// AgentAction is a follow-up the user can confirm
type AgentAction struct {
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload"`
}

// SupplementPayload is the payload of a log_supplement action
type SupplementPayload struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Category string `json:"category"`
}

// Memory categories
const (
	MemoryVoiceTranscript = "voice_transcript"
	MemoryAction          = "agent_action"
)

// MemoryEntry is a row of the agent memory log
type MemoryEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineEntry is a supplement or vital event in the unified health timeline
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Label     string    `json:"label"`
	Value     *float64  `json:"value,omitempty"`
}

// DailyStats summarizes today's adherence to the protocol catalog
type DailyStats struct {
	Date         string   `json:"date"`
	Taken        int      `json:"taken"`
	Total        int      `json:"total"`
	Percent      int      `json:"percent"`
	TakenNames   []string `json:"taken_names"`
	PendingNames []string `json:"pending_names"`
}
