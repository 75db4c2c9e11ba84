package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/labs"
	"github.com/pbaille/holoself/internal/llm"
	"github.com/pbaille/holoself/internal/scheduler"
	"github.com/pbaille/holoself/internal/store"
	"github.com/pbaille/holoself/internal/voice"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse reports which collaborators are usable
type StatusResponse struct {
	DBConnected    bool                 `json:"db_connected"`
	LLMConfigured  bool                 `json:"llm_configured"`
	LLMModel       string               `json:"llm_model,omitempty"`
	TTSAvailable   bool                 `json:"tts_available"`
	VoiceAvailable bool                 `json:"voice_available"`
	Whisper        *voice.WhisperStatus `json:"whisper,omitempty"`
	Timezone       string               `json:"timezone"`
	UptimeSeconds  int64                `json:"uptime_seconds"`
	Rules          []string             `json:"rules"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		DBConnected:   s.Store.Ping(r.Context()) == nil,
		LLMConfigured: s.LLMModel != "",
		LLMModel:      s.LLMModel,
		TTSAvailable:  s.Synth != nil,
		Timezone:      s.Location.Timezone,
		UptimeSeconds: int64(s.now().Sub(s.started).Seconds()),
		Rules:         s.Agent.Rules(),
	}
	if ws, ok := s.Trans.(interface{ Status() voice.WhisperStatus }); ok {
		st := ws.Status()
		resp.Whisper = &st
		resp.VoiceAvailable = st.BinaryFound && st.ModelFound
	} else {
		resp.VoiceAvailable = s.Trans != nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddSupplementRequest is the request body for logging an intake
type AddSupplementRequest struct {
	Name     string     `json:"name"`
	Dosage   string     `json:"dosage,omitempty"`
	Category string     `json:"category,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	TakenAt  *time.Time `json:"taken_at,omitempty"`
}

func (s *Server) addSupplement(w http.ResponseWriter, r *http.Request) {
	var req AddSupplementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	entry := domain.SupplementEntry{
		Name:     req.Name,
		Dosage:   req.Dosage,
		Category: req.Category,
		Notes:    req.Notes,
	}
	// known supplements are logged under their catalog name
	if p, ok := s.Catalog.Lookup(req.Name); ok {
		entry.Name = p.Name
		if entry.Dosage == "" {
			entry.Dosage = p.Dosage
		}
		if entry.Category == "" {
			entry.Category = p.Category
		}
	}
	if entry.Category == "" {
		entry.Category = "as_needed"
	}
	if req.TakenAt != nil {
		entry.TakenAt = *req.TakenAt
	}

	saved, err := s.Store.AddSupplement(r.Context(), entry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listSupplements(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, d, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1).Add(-time.Second)

	entries, err := s.Store.ListSupplements(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.SupplementEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":        from.Format(domain.DateLayout),
		"supplements": entries,
	})
}

// AddVitalRequest is the request body for recording a vital sign
type AddVitalRequest struct {
	VitalType string  `json:"vital_type"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Source    string  `json:"source,omitempty"`
}

func (s *Server) addVital(w http.ResponseWriter, r *http.Request) {
	var req AddVitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.VitalType) == "" {
		writeError(w, http.StatusBadRequest, "vital_type is required")
		return
	}
	if req.Source == "" {
		req.Source = domain.SourceManual
	}

	saved, err := s.Store.AddVital(r.Context(), domain.VitalEntry{
		VitalType: req.VitalType,
		Value:     req.Value,
		Unit:      req.Unit,
		Source:    req.Source,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	to := s.now()
	entries, err := s.Store.Timeline(r.Context(), to.AddDate(0, 0, -days), to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.TimelineEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":    days,
		"entries": entries,
	})
}

// ImportLabsRequest is the JSON form of a lab import
type ImportLabsRequest struct {
	URL string `json:"url"`
}

// importLabs accepts either a JSON body with a report URL or raw PDF bytes
func (s *Server) importLabs(w http.ResponseWriter, r *http.Request) {
	if s.Importer == nil {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNotConfigured.Error())
		return
	}

	var (
		res *labs.Result
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req ImportLabsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		res, err = s.Importer.ImportURL(r.Context(), req.URL)
	} else {
		data, readErr := io.ReadAll(io.LimitReader(r.Body, labs.MaxPDFSize+1))
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(data) == 0 {
			writeError(w, http.StatusBadRequest, "empty report")
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload.pdf"
		}
		res, err = s.Importer.Import(r.Context(), llm.Document{Name: name, PDF: data})
	}

	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func importStatus(err error) int {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, labs.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, labs.ErrNoMarkers), errors.Is(err, llm.ErrUnsupportedDocument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// generateExams previews the schedule without persisting it
func (s *Server) generateExams(w http.ResponseWriter, r *http.Request) {
	exams := scheduler.FromSource(r.Context(), s.Store, s.now(), s.Logger)
	writeJSON(w, http.StatusOK, map[string]interface{}{"exams": exams})
}

func (s *Server) refreshExams(w http.ResponseWriter, r *http.Request) {
	added, err := scheduler.Refresh(r.Context(), s.Store, s.now(), s.Logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"added": added})
}

func (s *Server) upcomingExams(w http.ResponseWriter, r *http.Request) {
	exams, err := s.Store.UpcomingExams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exams == nil {
		exams = []domain.ScheduledExam{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exams": exams})
}

func (s *Server) completeExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Store.CompleteExam(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "exam not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
