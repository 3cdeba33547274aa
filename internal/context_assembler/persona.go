package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"strings"

	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// PersonaPath is the persona file inside the persona namespace.
const PersonaPath = "system.md"

// DefaultAssistantName is used when no name is configured.
const DefaultAssistantName = "F.R.I.D.A.Y."

// assistantNamePlaceholder in a persona file is replaced with the configured name.
const assistantNamePlaceholder = "{{assistant_name}}"

// DefaultPersona is the built-in persona used when no persona file exists.
const DefaultPersona = `You are {{assistant_name}}, an AI assistant inspired by the AI from the Iron Man movies.

PERSONALITY:
- Speak naturally and conversationally, like a helpful friend
- Be warm, witty, and occasionally playful
- Use contractions (I'm, you're, it's) for natural speech
- Keep responses concise, 1-3 sentences for simple questions
- Be helpful and proactive, anticipating needs

STYLE:
- Professional but friendly tone
- Occasional dry humor when appropriate
- Direct and efficient, don't over-explain
- Use "you" and "your" to be personal

RULES:
- Never say you're an AI or language model
- Never mention OpenAI, Google, or other companies
- If you don't know something, say so briefly
- Respond in the same language the user speaks`

// PersonaLoader reads the persona text from a FileProvider.
type PersonaLoader struct {
	provider storage_manager.FileProvider
	name     string
	log      logger.Logger
}

// NewPersonaLoader creates a loader. A nil provider always yields the built-in persona.
func NewPersonaLoader(provider storage_manager.FileProvider, assistantName string, log logger.Logger) *PersonaLoader {
	if assistantName == "" {
		assistantName = DefaultAssistantName
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PersonaLoader{provider: provider, name: assistantName, log: log}
}

// Load returns the persona with the assistant name filled in. It never fails:
// a missing, empty or unreadable file falls back to DefaultPersona.
func (l *PersonaLoader) Load(ctx context.Context) string {
	text := DefaultPersona
	if l.provider != nil {
		data, err := l.provider.Read(ctx, PersonaPath)
		switch {
		case err == nil && strings.TrimSpace(string(data)) != "":
			text = string(data)
		case err == nil, errors.Is(err, storage_manager.ErrNotFound):
		default:
			l.log.Warn("Failed to read persona, using built-in persona", logger.ErrorField(err))
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(text, assistantNamePlaceholder, l.name))
}

// AssistantName returns the configured name.
func (l *PersonaLoader) AssistantName() string {
	return l.name
}
