package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"

	"google.golang.org/genai"
)

// Exchange is one past user message and the assistant's reply.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// BuildMessages assembles the system prompt and the chat contents for a
// turn: the most recent HistoryTurns exchanges followed by userText.
func (a *Assembler) BuildMessages(ctx context.Context, history []Exchange, userText string) (Prompt, []*genai.Content, error) {
	prompt, err := a.Build(ctx)
	if err != nil {
		return Prompt{}, nil, err
	}

	if len(history) > a.cfg.HistoryTurns {
		history = history[len(history)-a.cfg.HistoryTurns:]
	}

	contents := make([]*genai.Content, 0, 2*len(history)+1)
	for _, ex := range history {
		contents = append(contents,
			genai.NewContentFromText(ex.User, genai.RoleUser),
			genai.NewContentFromText(ex.Assistant, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	return prompt, contents, nil
}
