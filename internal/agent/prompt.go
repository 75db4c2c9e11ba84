package agent

import (
	"fmt"
	"strings"
)

// buildPrompt asks the generator to rephrase a canned message with the
// same facts. The canned text is included so the model keeps its intent.
func buildPrompt(sel Selection) string {
	var sb strings.Builder

	sb.WriteString("És o HoloSelf, um assistente de saúde pessoal calmo e orientado para soluções. ")
	sb.WriteString("Nunca és alarmista.\n\n")

	sb.WriteString("Contexto:\n")
	fmt.Fprintf(&sb, "- Hora atual: %02dh\n", sel.Context.Hour)
	fmt.Fprintf(&sb, "- Adesão ao protocolo hoje: %d%%\n", sel.Context.Adherence)
	fmt.Fprintf(&sb, "- Suplementos tomados: %s\n", joinOrNone(sel.Context.Taken))
	fmt.Fprintf(&sb, "- Suplementos pendentes: %s\n", joinOrNone(sel.Context.Pending))
	fmt.Fprintf(&sb, "- Exames: %s\n", sel.Context.ExamContext)
	sb.WriteString("\n")

	sb.WriteString("Mensagem base:\n")
	sb.WriteString(sel.Message.Text)
	sb.WriteString("\n\n")

	sb.WriteString(`Reescreve a mensagem base numa única mensagem curta (máximo 2 frases) em português de Portugal.
Mantém os números e nomes exatamente como estão. Devolve APENAS a mensagem, sem aspas nem markdown.`)

	return sb.String()
}

// cleanGenerated strips quoting the model sometimes adds around its answer
func cleanGenerated(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”")
	return strings.TrimSpace(s)
}
