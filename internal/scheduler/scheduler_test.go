package scheduler

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pbaille/holoself/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

func daysAgo(n int) string {
	return today.AddDate(0, 0, -n).Format(domain.DateLayout)
}

// freshLabs marks every marker as tested yesterday, so no exam is due
func freshLabs() []domain.LabDate {
	return []domain.LabDate{
		{Marker: "Zinc", Date: daysAgo(1)},
		{Marker: "ANA", Date: daysAgo(1)},
		{Marker: "Magnesium", Date: daysAgo(1)},
		{Marker: "Ferritin", Date: daysAgo(1)},
		{Marker: "Vitamin D", Date: daysAgo(1)},
		{Marker: "TSH", Date: daysAgo(1)},
	}
}

func examTypes(exams []domain.ScheduledExam) []string {
	types := make([]string, len(exams))
	for i, e := range exams {
		types[i] = e.ExamType
	}
	return types
}

func TestGenerate_VitaminDThreshold(t *testing.T) {
	tests := []struct {
		name string
		days int
		want bool
	}{
		{"100 days is 3 months", 100, true},
		{"90 days is 3 months", 90, true},
		{"89 days is 2 months", 89, false},
		{"yesterday", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labs := []domain.LabDate{
				{Marker: "Vitamin D", Date: daysAgo(tt.days)},
				{Marker: "TSH", Date: daysAgo(1)},
			}
			exams := Generate(nil, labs, today)
			assert.Equal(t, tt.want, contains(exams, "vitamin_d_panel"))
		})
	}
}

func TestGenerate_Thresholds(t *testing.T) {
	tests := []struct {
		marker    string
		supp      string
		exam      string
		threshold int
	}{
		{"Zinc", "Winfit", "zinc_copper_panel", 3},
		{"ANA", "Winfit", "autoimmune_panel", 6},
		{"Magnesium", "Magnésio Bisglicinato", "magnesium_cortisol_panel", 4},
		{"Ferritin", "Vitamina C 1000mg", "iron_panel", 6},
		{"Vitamin D", "", "vitamin_d_panel", 3},
		{"TSH", "", "thyroid_panel", 6},
	}

	for _, tt := range tests {
		t.Run(tt.exam, func(t *testing.T) {
			var active []SupplementInfo
			if tt.supp != "" {
				active = []SupplementInfo{{Name: tt.supp}}
			}

			at := func(days int) bool {
				labs := freshLabs()
				for i := range labs {
					if labs[i].Marker == tt.marker {
						labs[i].Date = daysAgo(days)
					}
				}
				return contains(Generate(active, labs, today), tt.exam)
			}

			assert.True(t, at(tt.threshold*30), "due at exactly %d days", tt.threshold*30)
			assert.False(t, at(tt.threshold*30-1), "not due one day earlier")
		})
	}
}

func TestGenerate_NoLabsAtAll(t *testing.T) {
	active := []SupplementInfo{{Name: "Winfit"}, {Name: "Magnésio Bisglicinato"}}

	got := Generate(active, nil, today)

	want := []domain.ScheduledExam{
		{
			ExamType:      "zinc_copper_panel",
			Reason:        "Monitorizar rácio Zinco/Cobre após 3 meses de suplementação com Winfit.",
			ScheduledDate: "2025-03-22",
			TriggeredBy:   "zinc_supplementation_3mo",
		},
		{
			ExamType:      "autoimmune_panel",
			Reason:        "Painel autoimune (ANA) para monitorizar Alopecia Areata, check semestral.",
			ScheduledDate: "2025-03-22",
			TriggeredBy:   "alopecia_areata_6mo",
		},
		{
			ExamType:      "magnesium_cortisol_panel",
			Reason:        "Verificar Magnésio sérico + Cortisol para avaliar recuperação do sistema nervoso.",
			ScheduledDate: "2025-03-29",
			TriggeredBy:   "magnesium_supplementation_4mo",
		},
		{
			ExamType:      "vitamin_d_panel",
			Reason:        "Verificação trimestral de Vitamina D, essencial para fototipo lightskin em Portugal (latitude alta, UV baixo no inverno).",
			ScheduledDate: "2025-03-22",
			TriggeredBy:   "vitd_quarterly_lightskin_portugal",
		},
		{
			ExamType:      "thyroid_panel",
			Reason:        "Painel tiroide (TSH, T3, T4) para monitorizar impacto do burnout crónico na tiroide.",
			ScheduledDate: "2025-03-29",
			TriggeredBy:   "burnout_thyroid_6mo",
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_EmptyWhenAllFresh(t *testing.T) {
	got := Generate([]SupplementInfo{{Name: "Winfit"}}, freshLabs(), today)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGenerate_OrderFollowsActiveInput(t *testing.T) {
	active := []SupplementInfo{{Name: "Vitamin C"}, {Name: "Zinco"}}

	got := Generate(active, nil, today)

	want := []string{
		"iron_panel",
		"zinc_copper_panel",
		"autoimmune_panel",
		"vitamin_d_panel",
		"thyroid_panel",
	}
	if diff := cmp.Diff(want, examTypes(got)); diff != "" {
		t.Errorf("exam order mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_DuplicatesAcrossSupplements(t *testing.T) {
	active := []SupplementInfo{{Name: "Winfit"}, {Name: "Zinco Quelato"}}

	got := Generate(active, freshLabsExcept("Zinc"), today)

	assert.Equal(t, []string{"zinc_copper_panel", "zinc_copper_panel"}, examTypes(got))
}

func TestGenerate_FirstTriggerWins(t *testing.T) {
	// matches both the zinc and magnesium keyword families
	active := []SupplementInfo{{Name: "Zinc + Magnesium complex"}}

	got := Generate(active, freshLabsExcept("Zinc", "Magnesium"), today)

	assert.Equal(t, []string{"zinc_copper_panel"}, examTypes(got))
	assert.Equal(t, "zinc", TriggerFor("Zinc + Magnesium complex"))
}

func TestGenerate_UnknownSupplementIgnored(t *testing.T) {
	got := Generate([]SupplementInfo{{Name: "Noxarem"}}, freshLabs(), today)
	assert.Empty(t, got)
	assert.Equal(t, "", TriggerFor("Noxarem"))
}

func TestGenerate_IsPure(t *testing.T) {
	active := []SupplementInfo{{Name: "Winfit"}}
	labs := []domain.LabDate{{Marker: "Zinc", Date: daysAgo(200)}}
	before := append([]domain.LabDate(nil), labs...)

	first := Generate(active, labs, today)
	second := Generate(active, labs, today)

	assert.Equal(t, first, second)
	assert.Equal(t, before, labs)
}

func TestGenerate_IgnoresTimeOfDay(t *testing.T) {
	labs := []domain.LabDate{{Marker: "Vitamin D", Date: "2024-12-15"}}
	lisbon := time.FixedZone("WEST", 3600)

	morning := Generate(nil, labs, time.Date(2025, time.March, 15, 0, 5, 0, 0, lisbon))
	night := Generate(nil, labs, time.Date(2025, time.March, 15, 23, 55, 0, 0, lisbon))

	assert.Equal(t, morning, night)
	assert.Equal(t, "2025-03-22", morning[0].ScheduledDate)
}

func TestMonthsSince(t *testing.T) {
	tests := []struct {
		name string
		labs []domain.LabDate
		key  string
		want int
	}{
		{"no labs", nil, "zinc", 999},
		{"marker absent", []domain.LabDate{{Marker: "TSH", Date: daysAgo(10)}}, "zinc", 999},
		{"case insensitive substring", []domain.LabDate{{Marker: "Zinc (serum)", Date: daysAgo(65)}}, "zinc", 2},
		{"unparseable date", []domain.LabDate{{Marker: "Zinc", Date: "15/03/2025"}}, "zinc", 999},
		{"empty date", []domain.LabDate{{Marker: "Zinc", Date: ""}}, "zinc", 999},
		{"surrounding spaces", []domain.LabDate{{Marker: "Zinc", Date: " " + daysAgo(31) + " "}}, "zinc", 1},
		{
			"first matching lab wins",
			[]domain.LabDate{{Marker: "Zinc", Date: daysAgo(200)}, {Marker: "zinc plasma", Date: daysAgo(1)}},
			"zinc", 6,
		},
		{"future date", []domain.LabDate{{Marker: "Zinc", Date: today.AddDate(0, 0, 40).Format(domain.DateLayout)}}, "zinc", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsSince(tt.labs, tt.key, today))
		})
	}
}

func freshLabsExcept(markers ...string) []domain.LabDate {
	labs := freshLabs()
	out := labs[:0]
	for _, l := range labs {
		skip := false
		for _, m := range markers {
			if l.Marker == m {
				skip = true
			}
		}
		if !skip {
			out = append(out, l)
		}
	}
	return out
}

func contains(exams []domain.ScheduledExam, examType string) bool {
	for _, e := range exams {
		if e.ExamType == examType {
			return true
		}
	}
	return false
}
