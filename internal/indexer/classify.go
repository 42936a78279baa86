package indexer

import (
	"regexp"

	"github.com/hyperjump/tanya/internal/models"
)

var (
	bulletLine       = regexp.MustCompile(`(?m)^[ \t]*[•\-*][ \t]+\S`)
	requirementWords = regexp.MustCompile(`(?i)\b(required|requires|requirements?|documents?|mandatory|must|requis(es)?|obligatoires?|pi[eè]ces)\b`)
	ordinalMarker    = regexp.MustCompile(`(?:^|\s)\d{1,2}[.)]\s`)
	stepMarker       = regexp.MustCompile(`(?i)(\bstep|\betape|étape)\s+\d+`)
	emailAddress     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneNumber      = regexp.MustCompile(`\+?\d[\d .()\-]{6,}\d`)
	contactWords     = regexp.MustCompile(`(?i)\b(contact|call|phone|telephone|t[ée]l[ée]phone|e-?mail|hotline)\b`)
)

// Classify assigns a chunk type. Rules are checked in order and the first match wins:
// requirement, procedure, contact, then general.
func Classify(text string) models.ChunkType {
	switch {
	case bulletLine.MatchString(text) || requirementWords.MatchString(text):
		return models.ChunkRequirement
	case len(ordinalMarker.FindAllStringIndex(text, -1)) >= 2 || stepMarker.MatchString(text):
		return models.ChunkProcedure
	case emailAddress.MatchString(text) || phoneNumber.MatchString(text) || contactWords.MatchString(text):
		return models.ChunkContact
	default:
		return models.ChunkGeneral
	}
}
