package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pbaille/holoself/internal/agent"
	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/vitamind"
	"github.com/pbaille/holoself/internal/voice"
	"go.uber.org/zap"
)

// maxAudioSize caps uploaded recordings
var maxAudioSize int64 = 25 << 20

func (s *Server) agentMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.Agent.Message(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) agentAction(w http.ResponseWriter, r *http.Request) {
	var action domain.AgentAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	confirmation, err := s.Agent.ExecuteAction(r.Context(), action)
	if errors.Is(err, agent.ErrUnknownAction) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": confirmation})
}

func (s *Server) agentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Agent.DailyStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// TranscriptRequest carries text heard by an external recognizer
type TranscriptRequest struct {
	Text string `json:"text"`
}

func (s *Server) agentTranscript(w http.ResponseWriter, r *http.Request) {
	var req TranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	msg, err := s.Agent.HandleTranscript(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// SpeakRequest is the text to synthesize; empty speaks the current agent message
type SpeakRequest struct {
	Text string `json:"text"`
}

func (s *Server) speak(w http.ResponseWriter, r *http.Request) {
	if s.Synth == nil {
		writeError(w, http.StatusServiceUnavailable, voice.ErrNotConfigured.Error())
		return
	}

	var req SpeakRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		msg, err := s.Agent.Message(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		text = msg.Text
	}

	audio, err := voice.Run(r.Context(), s.Pool, func(ctx context.Context) ([]byte, error) {
		return s.Synth.Synthesize(ctx, text)
	})
	if err != nil {
		s.Logger.Warn("Speech synthesis failed", zap.Error(err))
		writeError(w, voiceStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// TranscribeResponse is the recognized text and the agent's answer to it
type TranscribeResponse struct {
	Text    string               `json:"text"`
	Message *domain.AgentMessage `json:"message,omitempty"`
}

// transcribe takes a raw audio body, runs speech recognition on the voice
// pool and answers the transcript
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if s.Trans == nil {
		writeError(w, http.StatusServiceUnavailable, voice.ErrNotConfigured.Error())
		return
	}

	ext := r.URL.Query().Get("ext")
	if ext == "" {
		ext = "wav"
	}
	f, err := os.CreateTemp("", "holoself-*."+filepath.Base(ext))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, http.MaxBytesReader(w, r.Body, maxAudioSize))
	f.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("audio too large (max %d bytes)", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if n == 0 {
		writeError(w, http.StatusBadRequest, "empty audio")
		return
	}

	text, err := voice.Run(r.Context(), s.Pool, func(ctx context.Context) (string, error) {
		return s.Trans.Transcribe(ctx, f.Name())
	})
	if err != nil {
		s.Logger.Warn("Transcription failed", zap.Error(err))
		writeError(w, voiceStatus(err), err.Error())
		return
	}

	resp := TranscribeResponse{Text: text}
	if strings.TrimSpace(text) != "" {
		msg, err := s.Agent.HandleTranscript(r.Context(), text)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Message = msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func voiceStatus(err error) int {
	if errors.Is(err, voice.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// vitaminD answers with a recommendation. uv, skin_type and lat override
// the live UV index and the configured location.
func (s *Server) vitaminD(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	skin := s.Location.SkinType
	if v, err := strconv.Atoi(q.Get("skin_type")); err == nil {
		skin = v
	}
	lat := s.Location.Latitude
	if v, err := strconv.ParseFloat(q.Get("lat"), 64); err == nil {
		lat = v
	}

	var uv float64
	if v, err := strconv.ParseFloat(q.Get("uv"), 64); err == nil {
		uv = v
	} else {
		if s.UV == nil {
			writeError(w, http.StatusServiceUnavailable, "uv index source not configured")
			return
		}
		uv, err = s.UV.CurrentUVIndex(r.Context(), lat, s.Location.Longitude)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, vitamind.Calculate(uv, skin, lat, s.now().Month()))
}
