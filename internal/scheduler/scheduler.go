// Package scheduler predicts which lab exams should be booked given the
// active supplement protocol and the most recent test date per marker.
package scheduler

import (
	"strings"
	"time"

	"github.com/pbaille/holoself/internal/domain"
)

// neverTested is the staleness reported for markers with no usable test date
const neverTested = 999

// SupplementInfo is a supplement considered active for scheduling
type SupplementInfo struct {
	Name        string `json:"name"`
	StartedDate string `json:"started_date,omitempty"`
}

// examRule recommends an exam when the marker's last test is at least
// StaleMonths old.
type examRule struct {
	Marker      string
	StaleMonths int
	DaysAhead   int
	ExamType    string
	Reason      string
	TriggeredBy string
}

// trigger groups the rules fired by supplements whose name contains one of Keywords
type trigger struct {
	Name     string
	Keywords []string
	Rules    []examRule
}

// Triggers are evaluated in order; a supplement fires only the first one it matches.
var triggers = []trigger{
	{
		Name:     "zinc",
		Keywords: []string{"zinco", "zinc", "winfit"},
		Rules: []examRule{
			{
				Marker:      "zinc",
				StaleMonths: 3,
				DaysAhead:   7,
				ExamType:    "zinc_copper_panel",
				Reason:      "Monitorizar rácio Zinco/Cobre após 3 meses de suplementação com Winfit.",
				TriggeredBy: "zinc_supplementation_3mo",
			},
			{
				Marker:      "ana",
				StaleMonths: 6,
				DaysAhead:   7,
				ExamType:    "autoimmune_panel",
				Reason:      "Painel autoimune (ANA) para monitorizar Alopecia Areata, check semestral.",
				TriggeredBy: "alopecia_areata_6mo",
			},
		},
	},
	{
		Name:     "magnesium",
		Keywords: []string{"magnésio", "magnesium", "bisglicinato"},
		Rules: []examRule{
			{
				Marker:      "magnesium",
				StaleMonths: 4,
				DaysAhead:   14,
				ExamType:    "magnesium_cortisol_panel",
				Reason:      "Verificar Magnésio sérico + Cortisol para avaliar recuperação do sistema nervoso.",
				TriggeredBy: "magnesium_supplementation_4mo",
			},
		},
	},
	{
		Name:     "vitamin_c",
		Keywords: []string{"vitamina c", "vitamin c", "vit c"},
		Rules: []examRule{
			{
				Marker:      "ferritin",
				StaleMonths: 6,
				DaysAhead:   14,
				ExamType:    "iron_panel",
				Reason:      "Painel de ferro (Ferritina, Ferro sérico). Vitamina C aumenta absorção de ferro.",
				TriggeredBy: "vitc_iron_absorption_6mo",
			},
		},
	},
}

// baseline rules apply regardless of the supplement protocol, in this order
var baseline = []examRule{
	{
		Marker:      "vitamin d",
		StaleMonths: 3,
		DaysAhead:   7,
		ExamType:    "vitamin_d_panel",
		Reason:      "Verificação trimestral de Vitamina D, essencial para fototipo lightskin em Portugal (latitude alta, UV baixo no inverno).",
		TriggeredBy: "vitd_quarterly_lightskin_portugal",
	},
	{
		Marker:      "tsh",
		StaleMonths: 6,
		DaysAhead:   14,
		ExamType:    "thyroid_panel",
		Reason:      "Painel tiroide (TSH, T3, T4) para monitorizar impacto do burnout crónico na tiroide.",
		TriggeredBy: "burnout_thyroid_6mo",
	},
}

// Generate returns the exams recommended on the given day.
//
// Supplement-triggered exams come first, in the order of active, followed by
// the vitamin D and thyroid checks. Identical exams triggered by different
// supplements are all returned; callers persisting the result decide whether
// to skip duplicates.
func Generate(active []SupplementInfo, labs []domain.LabDate, today time.Time) []domain.ScheduledExam {
	today = truncateDay(today)
	exams := []domain.ScheduledExam{}

	for _, supp := range active {
		t, ok := matchTrigger(supp.Name)
		if !ok {
			continue
		}
		for _, rule := range t.Rules {
			if exam, due := rule.evaluate(labs, today); due {
				exams = append(exams, exam)
			}
		}
	}

	for _, rule := range baseline {
		if exam, due := rule.evaluate(labs, today); due {
			exams = append(exams, exam)
		}
	}

	return exams
}

// TriggerFor names the trigger category a supplement falls into, or "" if none
func TriggerFor(name string) string {
	t, ok := matchTrigger(name)
	if !ok {
		return ""
	}
	return t.Name
}

func matchTrigger(name string) (trigger, bool) {
	lower := strings.ToLower(name)
	for _, t := range triggers {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				return t, true
			}
		}
	}
	return trigger{}, false
}

func (r examRule) evaluate(labs []domain.LabDate, today time.Time) (domain.ScheduledExam, bool) {
	if MonthsSince(labs, r.Marker, today) < r.StaleMonths {
		return domain.ScheduledExam{}, false
	}
	return domain.ScheduledExam{
		ExamType:      r.ExamType,
		Reason:        r.Reason,
		ScheduledDate: today.AddDate(0, 0, r.DaysAhead).Format(domain.DateLayout),
		TriggeredBy:   r.TriggeredBy,
	}, true
}

// MonthsSince returns whole 30-day periods elapsed since the first lab whose
// marker contains key. Missing or unparseable dates count as never tested.
func MonthsSince(labs []domain.LabDate, key string, today time.Time) int {
	for _, l := range labs {
		if !strings.Contains(strings.ToLower(l.Marker), key) {
			continue
		}
		tested, err := time.Parse(domain.DateLayout, strings.TrimSpace(l.Date))
		if err != nil {
			return neverTested
		}
		return daysBetween(tested, today) / 30
	}
	return neverTested
}

// daysBetween counts calendar days from a to b, ignoring time of day and zone offsets
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
