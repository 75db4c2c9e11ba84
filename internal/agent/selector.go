// Package agent picks the contextual message HoloSelf shows or speaks.
//
// Selection is a strict priority cascade: rules are evaluated in order and
// the first one whose predicate holds builds the message. The Selector is
// pure; Service wires it to storage and the text generator.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/protocol"
)

// Branch names, in priority order
const (
	BranchVoice           = "voice"
	BranchPendingReminder = "pending_reminder"
	BranchFullAdherence   = "full_adherence"
	BranchUpcomingExam    = "upcoming_exam"
	BranchMorning         = "morning"
	BranchAfternoon       = "afternoon"
	BranchEvening         = "evening"
	BranchStable          = "stable"
)

// TranscriptWindow is how recent a voice transcript must be to drive the voice branch
const TranscriptWindow = 30 * time.Second

var (
	statusKeywords = []string{"como estou", "status", "estado", "resumo", "relatório", "relatorio", "progresso"}
	logKeywords    = []string{"tomei", "registar", "registrar", "regista", "registra"}
)

// Facts are the inputs of a selection
type Facts struct {
	Now time.Time
	// Taken maps catalog names to whether they were logged today
	Taken map[string]bool
	// Exams are the incomplete scheduled exams, soonest first
	Exams []domain.ScheduledExam
	// Transcript is a voice transcript received within TranscriptWindow, if any
	Transcript string
}

// PromptContext carries what the canned branches computed, for rephrasing
type PromptContext struct {
	Hour        int      `json:"hour"`
	Adherence   int      `json:"adherence"`
	Taken       []string `json:"taken"`
	Pending     []string `json:"pending"`
	ExamContext string   `json:"exam_context"`
}

// Selection is the outcome of the cascade
type Selection struct {
	Message domain.AgentMessage
	Branch  string
	// Rephrase is set for branches whose canned text may be replaced by generated text
	Rephrase bool
	Context  PromptContext
}

// state is derived once per selection and shared by all rules
type state struct {
	facts   Facts
	catalog protocol.Catalog
	hour    int
	taken   []string
	pending []string
	percent int
	due     domain.SupplementProtocol
}

type rule struct {
	name     string
	rephrase bool
	match    func(*state) bool
	build    func(*state) domain.AgentMessage
}

// Selector evaluates the message rules against a fixed catalog
type Selector struct {
	catalog protocol.Catalog
	rules   []rule
}

// NewSelector creates a Selector over the given catalog
func NewSelector(catalog protocol.Catalog) *Selector {
	return &Selector{catalog: catalog, rules: defaultRules()}
}

// Rules returns the branch names in evaluation order
func (s *Selector) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.name
	}
	return names
}

// Select returns exactly one message for the given facts
func (s *Selector) Select(f Facts) Selection {
	st := s.newState(f)
	ctx := PromptContext{
		Hour:        st.hour,
		Adherence:   st.percent,
		Taken:       st.taken,
		Pending:     st.pending,
		ExamContext: examContext(f.Exams),
	}

	for _, r := range s.rules {
		if !r.match(st) {
			continue
		}
		return Selection{
			Message:  r.build(st),
			Branch:   r.name,
			Rephrase: r.rephrase,
			Context:  ctx,
		}
	}

	// unreachable: the stable rule always matches
	return Selection{Message: stableMessage(st), Branch: BranchStable, Rephrase: true, Context: ctx}
}

// Stats computes today's adherence for the catalog
func (s *Selector) Stats(date string, taken map[string]bool) domain.DailyStats {
	st := s.newState(Facts{Taken: taken})
	return domain.DailyStats{
		Date:         date,
		Taken:        len(st.taken),
		Total:        len(s.catalog),
		Percent:      st.percent,
		TakenNames:   st.taken,
		PendingNames: st.pending,
	}
}

// Adherence is floor(100 * taken / total), 0 for an empty catalog
func Adherence(taken, total int) int {
	if total <= 0 {
		return 0
	}
	return 100 * taken / total
}

func (s *Selector) newState(f Facts) *state {
	st := &state{
		facts:   f,
		catalog: s.catalog,
		hour:    f.Now.Hour(),
		taken:   []string{},
		pending: []string{},
	}
	for _, p := range s.catalog {
		if f.Taken[p.Name] {
			st.taken = append(st.taken, p.Name)
		} else {
			st.pending = append(st.pending, p.Name)
		}
	}
	st.percent = Adherence(len(st.taken), len(s.catalog))
	return st
}

func defaultRules() []rule {
	return []rule{
		{
			name:  BranchVoice,
			match: func(st *state) bool { return strings.TrimSpace(st.facts.Transcript) != "" },
			build: voiceMessage,
		},
		{
			name:  BranchPendingReminder,
			match: matchPendingReminder,
			build: reminderMessage,
		},
		{
			name:     BranchFullAdherence,
			rephrase: true,
			match:    func(st *state) bool { return len(st.catalog) > 0 && len(st.pending) == 0 },
			build:    fullAdherenceMessage,
		},
		{
			name:     BranchUpcomingExam,
			rephrase: true,
			match:    func(st *state) bool { return len(st.facts.Exams) > 0 },
			build:    examMessage,
		},
		{
			name:     BranchMorning,
			rephrase: true,
			match:    hourWindow(5, 11),
			build: func(st *state) domain.AgentMessage {
				return canned(fmt.Sprintf("Bom dia. Adesão de hoje em %d%%. Começa com calma, um passo de cada vez.", st.percent),
					domain.MessageCalmNudge)
			},
		},
		{
			name:     BranchAfternoon,
			rephrase: true,
			match:    hourWindow(12, 17),
			build: func(st *state) domain.AgentMessage {
				return canned(fmt.Sprintf("Tarde estável. Adesão de hoje em %d%%. Hidrata-te e faz uma pausa curta.", st.percent),
					domain.MessageHealthInsight)
			},
		},
		{
			name:     BranchEvening,
			rephrase: true,
			match:    hourWindow(18, 21),
			build: func(st *state) domain.AgentMessage {
				return canned(fmt.Sprintf("Fim de dia. Adesão em %d%%. Reduz os ecrãs e prepara o descanso.", st.percent),
					domain.MessageCalmNudge)
			},
		},
		{
			name:     BranchStable,
			rephrase: true,
			match:    func(*state) bool { return true },
			build:    stableMessage,
		},
	}
}

func hourWindow(from, to int) func(*state) bool {
	return func(st *state) bool { return st.hour >= from && st.hour <= to }
}

func canned(text, category string) domain.AgentMessage {
	return domain.AgentMessage{Text: text, Category: category, Priority: domain.PriorityLow}
}

func voiceMessage(st *state) domain.AgentMessage {
	transcript := strings.TrimSpace(st.facts.Transcript)
	lower := strings.ToLower(transcript)

	if containsAny(lower, statusKeywords) {
		return domain.AgentMessage{
			Text:     statusReport(st),
			Category: domain.MessageVoiceResponse,
			Priority: domain.PriorityHigh,
		}
	}

	if containsAny(lower, logKeywords) {
		if p, ok := st.catalog.MatchIn(lower); ok {
			return domain.AgentMessage{
				Text:     fmt.Sprintf("Entendido. Confirma o registo de %s (%s).", p.Name, p.Dosage),
				Category: domain.MessageVoiceResponse,
				Priority: domain.PriorityHigh,
				Action:   logAction(p),
			}
		}
	}

	return domain.AgentMessage{
		Text:     fmt.Sprintf("Ouvi: \"%s\". Continuo a acompanhar.", transcript),
		Category: domain.MessageVoiceResponse,
		Priority: domain.PriorityMedium,
	}
}

func statusReport(st *state) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Adesão de hoje: %d%% (%d de %d).", st.percent, len(st.taken), len(st.catalog))
	fmt.Fprintf(&sb, " Tomados: %s.", joinOrNone(st.taken))
	fmt.Fprintf(&sb, " Pendentes: %s.", joinOrNone(st.pending))
	if len(st.facts.Exams) > 0 {
		e := st.facts.Exams[0]
		fmt.Fprintf(&sb, " Próximo exame: %s em %s.", e.ExamType, e.ScheduledDate)
	}
	return sb.String()
}

func matchPendingReminder(st *state) bool {
	for _, p := range st.catalog {
		if p.Contains(st.hour) && !st.facts.Taken[p.Name] {
			st.due = p
			return true
		}
	}
	return false
}

func reminderMessage(st *state) domain.AgentMessage {
	p := st.due
	return domain.AgentMessage{
		Text:     fmt.Sprintf("Está na hora do %s (%s): %s.", p.Name, p.Dosage, p.Benefit),
		Category: domain.MessageSupplementReminder,
		Priority: domain.PriorityMedium,
		Action:   logAction(p),
	}
}

func fullAdherenceMessage(st *state) domain.AgentMessage {
	return canned(fmt.Sprintf("Protocolo completo: %d de %d suplementos registados hoje. Sistema em carga máxima.",
		len(st.taken), len(st.catalog)), domain.MessageHealthInsight)
}

func examMessage(st *state) domain.AgentMessage {
	e := st.facts.Exams[0]
	return canned(fmt.Sprintf("Próximo exame: %s a %s. %s Adesão de hoje: %d%%.",
		e.ExamType, e.ScheduledDate, e.Reason, st.percent), domain.MessageSchedule)
}

func stableMessage(st *state) domain.AgentMessage {
	return canned(fmt.Sprintf("Sistema estável. A monitorizar indicadores de recuperação. Adesão em %d%%.", st.percent),
		domain.MessageHealthInsight)
}

func logAction(p domain.SupplementProtocol) *domain.AgentAction {
	payload, _ := json.Marshal(protocol.Payload(p))
	return &domain.AgentAction{ActionType: domain.ActionLogSupplement, Payload: payload}
}

func examContext(exams []domain.ScheduledExam) string {
	if len(exams) == 0 {
		return "Sem exames pendentes."
	}
	e := exams[0]
	return fmt.Sprintf("Próximo exame: %s a %s (%s).", e.ExamType, e.ScheduledDate, e.Reason)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "nenhum"
	}
	return strings.Join(names, ", ")
}
