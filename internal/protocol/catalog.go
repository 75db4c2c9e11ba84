// Package protocol holds the compiled-in supplement catalog shared by the
// exam scheduler and the agent message selector.
package protocol

import (
	"strings"

	"github.com/pbaille/holoself/internal/domain"
)

// Catalog is an ordered, read-only list of supplement protocols.
// Declaration order is significant: reminders are issued in this order.
type Catalog []domain.SupplementProtocol

var defaultCatalog = Catalog{
	{
		Name:      "Winfit",
		Dosage:    "1 saqueta",
		Category:  domain.CategoryMorning,
		StartHour: 8,
		EndHour:   11,
		Benefit:   "1000mg de Vitamina C + Zinco para fortalecer o sistema imunitário e apoiar a recuperação capilar",
	},
	{
		Name:      "Magnésio Bisglicinato",
		Dosage:    "1 cápsula",
		Category:  domain.CategoryNight,
		StartHour: 22,
		EndHour:   23,
		Benefit:   "proteger os folículos capilares e o sistema nervoso",
		Aliases:   []string{"magnésio", "magnesio"},
	},
	{
		Name:      "Noxarem",
		Dosage:    "1 comprimido (Melatonina 3mg)",
		Category:  domain.CategoryNight,
		StartHour: 0,
		EndHour:   1,
		Benefit:   "Melatonina 3mg para sincronizar o ciclo circadiano",
		Aliases:   []string{"melatonina"},
	},
}

// Default returns a copy of the default catalog
func Default() Catalog {
	c := make(Catalog, len(defaultCatalog))
	copy(c, defaultCatalog)
	return c
}

// Names returns the supplement names in declaration order
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name
	}
	return names
}

// Lookup finds a protocol by name, ignoring case
func (c Catalog) Lookup(name string) (domain.SupplementProtocol, bool) {
	for _, p := range c {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return domain.SupplementProtocol{}, false
}

// MatchIn returns the first protocol whose name or alias occurs in text
func (c Catalog) MatchIn(text string) (domain.SupplementProtocol, bool) {
	lower := strings.ToLower(text)
	for _, p := range c {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return p, true
		}
		for _, alias := range p.Aliases {
			if strings.Contains(lower, strings.ToLower(alias)) {
				return p, true
			}
		}
	}
	return domain.SupplementProtocol{}, false
}

// Payload builds the log_supplement payload pre-filled from a protocol
func Payload(p domain.SupplementProtocol) domain.SupplementPayload {
	return domain.SupplementPayload{
		Name:     p.Name,
		Dosage:   p.Dosage,
		Category: p.Category,
	}
}
