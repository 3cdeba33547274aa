package assistant

import (
	"strings"
)

var replyPrefixes = []string{"assistant:", "friday:", "f.r.i.d.a.y.:"}

// CleanResponse strips a speaker label and quotes wrapping the whole reply.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, p := range replyPrefixes {
		if strings.HasPrefix(lower, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(text) >= len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			text = strings.TrimSpace(text[len(q[0]) : len(text)-len(q[1])])
			break
		}
	}
	return text
}

var offlineGreetings = []string{
	"Hey there! I'm in offline mode right now. Add an API key in your settings to unlock my full capabilities!",
	"Hi! I'm running without a language model at the moment. Configure a provider to enable smart responses.",
	"Hello! My AI features are offline. Set up a model provider in your settings to chat properly!",
}

const offlineHelp = `I can help with lots of things once a model provider is configured:

- Natural conversations
- Remembering what matters to you
- Daily summaries of what we talked about
- General questions

Set a provider and API key in your config file or environment.`

const offlineDefault = `I'm in offline mode and can't process that request.

To enable my AI capabilities:
1. Choose a provider (openai, gemini, claude or ollama)
2. Add its API key to your config
3. Restart me

It only takes a minute!`

// offlineReply answers without a model.
func (a *Assistant) offlineReply(text string) string {
	lower := strings.ToLower(text)
	words := " " + strings.Join(strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	}), " ") + " "
	hasWord := func(ws ...string) bool {
		for _, w := range ws {
			if strings.Contains(words, " "+w+" ") {
				return true
			}
		}
		return false
	}

	switch {
	case hasWord("hello", "hi", "hey", "good morning", "good evening"):
		a.mu.Lock()
		greeting := offlineGreetings[a.offline%len(offlineGreetings)]
		a.offline++
		a.mu.Unlock()
		return greeting
	case hasWord("how are you", "how's it going", "what's up"):
		return "I'm in offline mode, so a bit limited! Configure a model provider for full functionality."
	case hasWord("help", "what can you do"):
		return offlineHelp
	case hasWord("thank", "thanks"):
		return "You're welcome! Don't forget to add an API key for the full experience."
	case hasWord("bye", "goodbye", "see you"):
		return "Goodbye! Come back after setting up your API key!"
	}
	return offlineDefault
}
