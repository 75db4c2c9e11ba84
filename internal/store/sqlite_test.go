package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 15, 9, 30, 0, 0, time.Local)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "holoself.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNew_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holoself.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// reopening an up-to-date database is a no-op
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 1, n)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSupplements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	notes := "after breakfast"
	saved, err := s.AddSupplement(ctx, domain.SupplementEntry{
		Name: "Winfit", Dosage: "1 saqueta", Category: domain.CategoryMorning, Notes: &notes,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, fixedNow, saved.TakenAt)

	_, err = s.AddSupplement(ctx, domain.SupplementEntry{
		Name: "Noxarem", Dosage: "1 comprimido", Category: domain.CategoryNight,
		TakenAt: fixedNow.AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	taken, err := s.IsSupplementTaken(ctx, "Winfit", "2025-03-15")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.IsSupplementTaken(ctx, "Noxarem", "2025-03-15")
	require.NoError(t, err)
	assert.False(t, taken)

	dayStart := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.Local)
	list, err := s.ListSupplements(ctx, dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Second))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Winfit", list[0].Name)
	require.NotNil(t, list[0].Notes)
	assert.Equal(t, notes, *list[0].Notes)
	assert.True(t, fixedNow.Equal(list[0].TakenAt))
}

func TestActiveSupplementNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	add := func(name string, daysAgo int) {
		_, err := s.AddSupplement(ctx, domain.SupplementEntry{
			Name: name, Dosage: "1", Category: "as_needed", TakenAt: fixedNow.AddDate(0, 0, -daysAgo),
		})
		require.NoError(t, err)
	}
	add("Winfit", 10)
	add("Magnésio Bisglicinato", 30)
	add("Winfit", 1)
	add("Old Stuff", 200)

	names, err := s.ActiveSupplementNames(ctx, scheduler.ActiveWindowDays)
	require.NoError(t, err)
	assert.Equal(t, []string{"Magnésio Bisglicinato", "Winfit"}, names)
}

func TestLabResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddLabResults(ctx, []domain.LabResult{
		{Marker: "Vitamin D", Value: 25.3, Unit: "ng/mL", Status: "low", TestDate: "2024-11-02"},
		{Marker: "TSH", Value: 2.1, Unit: "mUI/L", Status: "normal", TestDate: "2024-11-02"},
		{Marker: "Unknown", Value: 1, Unit: "x", Status: "unknown"},
	})
	require.NoError(t, err)

	saved, err := s.AddLabResults(ctx, []domain.LabResult{
		{Marker: "Vitamin D", Value: 34, Unit: "ng/mL", Status: "normal", TestDate: "2025-02-20"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotEmpty(t, saved[0].ID)

	labs, err := s.LatestLabDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabDate{
		{Marker: "TSH", Date: "2024-11-02"},
		{Marker: "Vitamin D", Date: "2025-02-20"},
	}, labs)
}

func TestScheduledExams(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	later, err := s.AddScheduledExam(ctx, domain.ScheduledExam{
		ExamType: "thyroid_panel", Reason: "r", ScheduledDate: "2025-03-29", TriggeredBy: "burnout_thyroid_6mo",
	})
	require.NoError(t, err)
	sooner, err := s.AddScheduledExam(ctx, domain.ScheduledExam{
		ExamType: "vitamin_d_panel", Reason: "r", ScheduledDate: "2025-03-22", TriggeredBy: "vitd_quarterly_lightskin_portugal",
	})
	require.NoError(t, err)

	exams, err := s.UpcomingExams(ctx)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, sooner, exams[0].ID)
	assert.Equal(t, later, exams[1].ID)
	assert.False(t, exams[0].Completed)

	pending, err := s.HasPendingExam(ctx, "vitamin_d_panel", "vitd_quarterly_lightskin_portugal")
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, s.CompleteExam(ctx, sooner[:8]))

	pending, err = s.HasPendingExam(ctx, "vitamin_d_panel", "vitd_quarterly_lightskin_portugal")
	require.NoError(t, err)
	assert.False(t, pending)

	exams, err = s.UpcomingExams(ctx)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, later, exams[0].ID)
}

func TestCompleteExam_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddScheduledExam(ctx, domain.ScheduledExam{ExamType: "x", Reason: "r", ScheduledDate: "2025-01-01"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.CompleteExam(ctx, "does-not-exist"), ErrNotFound)
	assert.ErrorIs(t, s.CompleteExam(ctx, ""), ErrNotFound)
	assert.ErrorIs(t, s.CompleteExam(ctx, "%"), ErrNotFound)
}

func TestRefreshAgainstStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddSupplement(ctx, domain.SupplementEntry{Name: "Winfit", Dosage: "1 saqueta", Category: "morning"})
	require.NoError(t, err)

	first, err := scheduler.Refresh(ctx, s, fixedNow, nil)
	require.NoError(t, err)
	assert.Len(t, first, 4) // zinc, ana, vitamin d, thyroid

	second, err := scheduler.Refresh(ctx, s, fixedNow, nil)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRecentTranscript(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.RecentTranscript(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = s.AddMemory(ctx, "tomei Winfit", domain.MemoryVoiceTranscript)
	require.NoError(t, err)
	_, err = s.AddMemory(ctx, "Winfit registado com sucesso.", domain.MemoryAction)
	require.NoError(t, err)

	s.now = func() time.Time { return fixedNow.Add(10 * time.Second) }
	got, err = s.RecentTranscript(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "tomei Winfit", got)

	s.now = func() time.Time { return fixedNow.Add(31 * time.Second) }
	got, err = s.RecentTranscript(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddSupplement(ctx, domain.SupplementEntry{
		Name: "Winfit", Dosage: "1 saqueta", Category: "morning", TakenAt: fixedNow.Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = s.AddVital(ctx, domain.VitalEntry{
		VitalType: "heart_rate", Value: 62, Unit: "bpm", RecordedAt: fixedNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	entries, err := s.Timeline(ctx, fixedNow.AddDate(0, 0, -1), fixedNow)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "vital", entries[0].EventType)
	require.NotNil(t, entries[0].Value)
	assert.Equal(t, 62.0, *entries[0].Value)
	assert.Contains(t, entries[0].Label, "heart_rate")

	assert.Equal(t, "supplement", entries[1].EventType)
	assert.Equal(t, "Winfit (1 saqueta)", entries[1].Label)
	assert.Nil(t, entries[1].Value)
}

func TestSupplements_StoredInLocalDay(t *testing.T) {
	prev := time.Local
	time.Local = time.FixedZone("UTC+1", 3600)
	t.Cleanup(func() { time.Local = prev })

	ctx := context.Background()
	s := newTestStore(t)

	// 23:30 UTC is already 00:30 on the 16th for a UTC+1 user
	_, err := s.AddSupplement(ctx, domain.SupplementEntry{
		Name: "Winfit", Dosage: "1 saqueta", Category: "morning",
		TakenAt: time.Date(2025, time.March, 15, 23, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	taken, err := s.IsSupplementTaken(ctx, "Winfit", "2025-03-16")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.IsSupplementTaken(ctx, "Winfit", "2025-03-15")
	require.NoError(t, err)
	assert.False(t, taken)

	dayStart := time.Date(2025, time.March, 16, 0, 0, 0, 0, time.Local)
	list, err := s.ListSupplements(ctx, dayStart, dayStart.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].TakenAt.Equal(time.Date(2025, time.March, 15, 23, 30, 0, 0, time.UTC)))
}

func TestLatestLabDates_IgnoresNonISODates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddLabResults(ctx, []domain.LabResult{
		{Marker: "Ferritin", Value: 40, Unit: "ng/mL", Status: "normal", TestDate: "março 2024"},
		{Marker: "Ferritin", Value: 55, Unit: "ng/mL", Status: "normal", TestDate: "2025-03-01"},
		{Marker: "B12", Value: 300, Unit: "pg/mL", Status: "normal", TestDate: "15/01/2025"},
	})
	require.NoError(t, err)

	labs, err := s.LatestLabDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabDate{{Marker: "Ferritin", Date: "2025-03-01"}}, labs)
}
