package vitamind

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		uv       float64
		skin     int
		lat      float64
		month    time.Month
		minutes  int
		window   string
		iu       int
		notePart string
	}{
		{"winter lisbon", 1.5, 4, 38.7, time.January, 60, "11:00 - 14:00", 3000, "UV muito baixo"},
		{"no uv clamps to max", 0, 4, 38.7, time.December, 120, "11:00 - 14:00", 3000, "UV muito baixo"},
		{"spring moderate", 3, 4, 38.7, time.April, 30, "11:00 - 15:00", 2000, "UV moderado"},
		{"summer strong", 6, 4, 38.7, time.July, 15, "10:00 - 16:00", 1000, "UV bom"},
		{"fair skin summer", 9, 2, 38.7, time.July, 10, "10:00 - 16:00", 0, "UV bom"},
		{"dark skin low uv", 2, 6, 20, time.March, 90, "10:00 - 16:00", 4000, "UV moderado"},
		{"north europe", 4, 3, 52, time.June, 15, "11:30 - 13:30", 2000, "UV bom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Calculate(tt.uv, tt.skin, tt.lat, tt.month)
			assert.Equal(t, tt.minutes, rec.OptimalMinutes)
			assert.Equal(t, tt.window, rec.BestWindow)
			assert.Equal(t, tt.iu, rec.D3Supplement)
			assert.Contains(t, rec.Note, tt.notePart)
			assert.Equal(t, tt.skin, rec.SkinType)
		})
	}
}

func TestCalculate_InvalidSkinType(t *testing.T) {
	rec := Calculate(3, 9, DefaultLatitude, time.May)
	assert.Equal(t, DefaultSkinType, rec.SkinType)
	assert.Equal(t, 30, rec.OptimalMinutes)
}

func TestCurrentUVIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "38.7223", q.Get("latitude"))
		assert.Equal(t, "-9.1393", q.Get("longitude"))
		assert.Equal(t, "uv_index", q.Get("current"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latitude":38.72,"current":{"time":"2025-03-15T12:00","uv_index":4.35}}`))
	}))
	defer srv.Close()

	uv, err := NewUVClient(srv.URL).CurrentUVIndex(context.Background(), 38.7223, -9.1393)
	require.NoError(t, err)
	assert.InDelta(t, 4.35, uv, 1e-9)
}

func TestCurrentUVIndex_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("latitude") {
		case "1":
			w.Write([]byte(`{"current":{}}`))
		case "2":
			w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewUVClient(srv.URL)
	ctx := context.Background()

	_, err := c.CurrentUVIndex(ctx, 1, 0)
	assert.EqualError(t, err, "uv index not available")

	_, err = c.CurrentUVIndex(ctx, 2, 0)
	assert.Error(t, err)

	_, err = c.CurrentUVIndex(ctx, 3, 0)
	assert.EqualError(t, err, "weather api error (status 503)")
}
