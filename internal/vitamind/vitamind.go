// Package vitamind estimates safe sun exposure and vitamin D3
// supplementation from the UV index, Fitzpatrick skin type and latitude.
package vitamind

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Defaults for a lightskin user in Lisbon
const (
	DefaultSkinType = 4
	DefaultLatitude = 38.7
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// Recommendation is the outcome of Calculate
type Recommendation struct {
	UVIndex        float64 `json:"uv_index"`
	SkinType       int     `json:"skin_type"`
	Latitude       float64 `json:"latitude"`
	OptimalMinutes int     `json:"optimal_minutes"`
	BestWindow     string  `json:"best_window"`
	D3Supplement   int     `json:"d3_iu_supplement"`
	Note           string  `json:"note"`
}

// baseMED is minutes to a minimal erythemal dose at UV 6, by skin type
var baseMED = map[int]float64{1: 10, 2: 15, 3: 20, 4: 30, 5: 45, 6: 60}

// Calculate returns the recommendation for the given conditions. A skin
// type outside 1-6 is treated as DefaultSkinType.
func Calculate(uv float64, skinType int, latitude float64, month time.Month) Recommendation {
	if skinType < 1 || skinType > 6 {
		skinType = DefaultSkinType
	}

	uvFactor := 10.0
	if uv > 0 {
		uvFactor = 6.0 / uv
	}
	// half a MED is the safe exposure
	minutes := int(math.Round(baseMED[skinType] * uvFactor * 0.5))
	minutes = min(max(minutes, 10), 120)

	window := bestWindow(latitude, month)
	iu := supplementIU(uv, skinType)

	var note string
	switch {
	case uv < 2:
		note = fmt.Sprintf("UV muito baixo (%.0f). Em Portugal no inverno, é quase impossível sintetizar Vitamina D suficiente. Suplementação de %dIU/dia é essencial para fototipo %d.",
			uv, iu, skinType)
	case uv < 4:
		note = fmt.Sprintf("UV moderado (%.0f). %d minutos de exposição solar diária no período %s com braços e rosto expostos. Suplementar %dIU/dia como apoio.",
			uv, minutes, window, iu)
	default:
		note = fmt.Sprintf("UV bom (%.0f). %d minutos de exposição solar no período %s são suficientes. Sem necessidade de suplementação extra.",
			uv, minutes, window)
	}

	return Recommendation{
		UVIndex:        uv,
		SkinType:       skinType,
		Latitude:       latitude,
		OptimalMinutes: minutes,
		BestWindow:     window,
		D3Supplement:   iu,
		Note:           note,
	}
}

func bestWindow(latitude float64, month time.Month) string {
	switch {
	case latitude > 45:
		return "11:30 - 13:30"
	case latitude > 35:
		switch month {
		case time.November, time.December, time.January, time.February:
			return "11:00 - 14:00"
		case time.March, time.April, time.September, time.October:
			return "11:00 - 15:00"
		default:
			return "10:00 - 16:00"
		}
	default:
		return "10:00 - 16:00"
	}
}

func supplementIU(uv float64, skinType int) int {
	switch {
	case uv < 3:
		switch {
		case skinType <= 2:
			return 2000
		case skinType <= 4:
			return 3000
		default:
			return 4000
		}
	case uv < 5:
		switch {
		case skinType <= 2:
			return 1000
		case skinType <= 4:
			return 2000
		default:
			return 3000
		}
	default:
		if skinType <= 3 {
			return 0
		}
		return 1000
	}
}

// UVClient fetches the current UV index from Open-Meteo (no key needed)
type UVClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewUVClient creates a client; baseURL may be empty for the public API
func NewUVClient(baseURL string) *UVClient {
	if baseURL == "" {
		baseURL = openMeteoURL
	}
	return &UVClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type forecastResponse struct {
	Current struct {
		UVIndex *float64 `json:"uv_index"`
	} `json:"current"`
}

// CurrentUVIndex returns the UV index now at the given coordinates
func (c *UVClient) CurrentUVIndex(ctx context.Context, lat, lon float64) (float64, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "uv_index")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("weather api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("weather api error (status %d)", resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return 0, fmt.Errorf("parse weather data: %w", err)
	}
	if fr.Current.UVIndex == nil {
		return 0, fmt.Errorf("uv index not available")
	}
	return *fr.Current.UVIndex, nil
}
