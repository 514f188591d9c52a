package service

import (
	"regexp"
	"strings"

	"biopaper-tutor/internal/domain"
)

// cardHeaderPattern reconoce "**知识卡片：título**" o "**Knowledge Card: título**"
// seguido de salto de línea; admite dos puntos ASCII o de ancho completo.
var cardHeaderPattern = regexp.MustCompile(`\*\*(?:知识卡片|Knowledge Card)[：:]\s*(.+?)\*\*\n`)

// ExtractKnowledgeCards devuelve las tarjetas en orden de aparición. El cuerpo de
// cada tarjeta termina antes de la siguiente línea que empieza con "**".
func ExtractKnowledgeCards(text string) []domain.KnowledgeCard {
	cards := make([]domain.KnowledgeCard, 0)
	pos := 0
	for pos < len(text) {
		loc := cardHeaderPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		title := strings.TrimSpace(text[pos+loc[2] : pos+loc[3]])
		bodyStart := pos + loc[1]
		bodyEnd := len(text)
		if idx := strings.Index(text[bodyStart:], "\n**"); idx >= 0 {
			bodyEnd = bodyStart + idx
		}
		if title != "" {
			cards = append(cards, domain.KnowledgeCard{
				Title:   title,
				Content: strings.TrimSpace(text[bodyStart:bodyEnd]),
			})
		}
		pos = bodyEnd
	}
	return cards
}
