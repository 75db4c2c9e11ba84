package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pbaille/holoself/internal/domain"
)

// maxLabText caps the report text sent in a prompt
const maxLabText = 60 * 1024

func buildLabPrompt(reportText string) string {
	var sb strings.Builder

	sb.WriteString("You are a clinical lab results parser. Extract ALL health markers from this clinical analysis report.\n\n")

	if reportText != "" {
		reportText = truncate(reportText, maxLabText)
		sb.WriteString("Report:\n")
		sb.WriteString(reportText)
		sb.WriteString("\n\n")
	}

	sb.WriteString(`Return a JSON object with this exact structure:
{
  "patient_name": "string or null",
  "date": "YYYY-MM-DD or null",
  "lab": "laboratory name or null",
  "markers": [
    {
      "marker": "Vitamin D",
      "value": 25.3,
      "unit": "ng/mL",
      "reference_range": "30-100",
      "status": "low"
    }
  ]
}

Focus especially on: Vitamin D, Zinc, Copper, Cortisol, Magnesium, TSH, T3, T4, ANA, Ferritin, B12, Iron, Hemoglobin.
Only return valid JSON, no markdown.`)

	return sb.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// reportDateLayouts are the date forms seen on Portuguese lab reports
var reportDateLayouts = []string{
	domain.DateLayout,
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
}

// normalizeDate returns the report date as YYYY-MM-DD, or "" when it
// cannot be read as a calendar day.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(domain.DateLayout)
		}
	}
	return ""
}

func parseLabResponse(resp string) (*OCRResult, error) {
	// Clean up response - remove markdown code blocks if present
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var result OCRResult
	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("parse json: %w (response: %s)", err, resp)
	}

	return &result, nil
}

// LabResults converts an extraction into rows ready to store. The report
// date and lab name apply to every marker. Dates that are not a calendar
// day are dropped so they never compete with real test dates.
func (r *OCRResult) LabResults(source string) []domain.LabResult {
	var date, lab string
	if r.Date != nil {
		date = normalizeDate(*r.Date)
	}
	if r.Lab != nil {
		lab = *r.Lab
	}

	results := make([]domain.LabResult, 0, len(r.Markers))
	for _, m := range r.Markers {
		if strings.TrimSpace(m.Marker) == "" {
			continue
		}
		status := m.Status
		if status == "" {
			status = "unknown"
		}
		results = append(results, domain.LabResult{
			Marker:         m.Marker,
			Value:          m.Value,
			Unit:           m.Unit,
			ReferenceRange: m.ReferenceRange,
			Status:         status,
			LabName:        lab,
			TestDate:       date,
			PDFSource:      source,
		})
	}
	return results
}
