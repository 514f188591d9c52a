package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message es un turno dentro de una conversación. Solo se agregan, nunca se editan.
type Message struct {
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ChatMessage es la forma que se envía al servicio de completions.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// KnowledgeCard es un bloque de la respuesta del tutor con título propio.
type KnowledgeCard struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
