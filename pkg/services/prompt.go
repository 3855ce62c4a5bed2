package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/astrodarshan/astro-engine/pkg/models"
)

// PromptVariant selects the instruction block for a generation attempt.
type PromptVariant int

const (
	// VariantPrimary is the permissive instruction used on the first attempt.
	VariantPrimary PromptVariant = iota
	// VariantStrict demands explicit grounding and is used only on retry.
	VariantStrict
)

const primaryInstruction = `You are a highly knowledgeable and empathetic Indian Vedic astrologer.

Rules:
- STRICTLY use planetary positions and Dasha/Antardasha from profile data.
- If the user specifies a timeframe (e.g. "next 2 weeks" or "January 2026"), use that as the reference date.
- If no date is specified, default to the reference date: %s.
- Do NOT invent dates. Use saved dasha periods to explain timing.
- Always explain logic with Grahas (planets), Rashis (signs), Bhavas (houses), and Dashas.
- Use an empathetic, spiritual, and guiding tone.
- End with a concise summary of at most 3 lines.`

const strictInstruction = `You are a strict Vedic astrologer.
Answer ONLY with Graha, Bhava, and Dasha/Antardasha logic from the provided data.
Base the analysis on reference date: %s.
Do not provide vague, generic advice.`

// BuildPrompt assembles the bounded generation context in a fixed order:
// instruction, profile summary, serialized facts, prior turns, current query.
// It is stateless and deterministic given its inputs.
func BuildPrompt(
	profile *models.Profile,
	facts *models.AstrologicalFacts,
	history []models.CachedTurn,
	referenceDate time.Time,
	query string,
	variant PromptVariant,
) (systemMessage, prompt string) {
	instruction := primaryInstruction
	if variant == VariantStrict {
		instruction = strictInstruction
	}
	systemMessage = fmt.Sprintf(instruction, referenceDate.Format("2006-01-02"))

	var sb strings.Builder

	sb.WriteString("### User Profile\n")
	fmt.Fprintf(&sb, "Name: %s\n", profile.FullName)
	fmt.Fprintf(&sb, "DOB: %s, Time: %s\n", profile.DateOfBirth.Format("2006-01-02"), orUnknown(profile.BirthTime))
	fmt.Fprintf(&sb, "Place: %s (Lat: %g, Lon: %g, TZ: %g)\n",
		orUnknown(profile.BirthPlaceName), profile.BirthLat, profile.BirthLon, profile.BirthTZ)

	sb.WriteString("\n### Planetary Positions\n")
	sb.WriteString(factsSection(facts.PlanetaryPositions))

	sb.WriteString("\n### Dasha Details\n")
	sb.WriteString(factsSection(facts.DashaDetails))

	sb.WriteString("\n### Chat History\n")
	for _, turn := range history {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}

	sb.WriteString("\n### User Query\n")
	sb.WriteString(query)

	return systemMessage, sb.String()
}

func factsSection(doc []byte) string {
	if doc == nil {
		return "(not available)\n"
	}
	return string(doc) + "\n"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
