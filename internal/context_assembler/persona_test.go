package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager/mocks"
)

func TestPersonaLoader_Load(t *testing.T) {
	ctx := context.Background()
	builtIn := NewPersonaLoader(nil, "Jarvis", nil).Load(ctx)

	t.Run("nil provider uses built-in persona", func(t *testing.T) {
		assert.Contains(t, builtIn, "You are Jarvis,")
		assert.NotContains(t, builtIn, assistantNamePlaceholder)
	})

	t.Run("default name", func(t *testing.T) {
		l := NewPersonaLoader(nil, "", nil)
		assert.Equal(t, DefaultAssistantName, l.AssistantName())
		assert.Contains(t, l.Load(ctx), "You are F.R.I.D.A.Y.,")
	})

	t.Run("reads persona file and fills in the name", func(t *testing.T) {
		provider := mocks.NewFileProvider(t)
		provider.EXPECT().
			Read(mock.Anything, PersonaPath).
			Return([]byte("  You are {{assistant_name}}, a butler.\n"), nil)

		got := NewPersonaLoader(provider, "Jarvis", nil).Load(ctx)
		assert.Equal(t, "You are Jarvis, a butler.", got)
	})

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"missing file", nil, fmt.Errorf("system.md: %w", storage_manager.ErrNotFound)},
		{"read failure", nil, errors.New("permission denied")},
		{"blank file", []byte(" \n\t"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name+" falls back to built-in persona", func(t *testing.T) {
			provider := mocks.NewFileProvider(t)
			provider.EXPECT().Read(mock.Anything, PersonaPath).Return(tt.data, tt.err)

			got := NewPersonaLoader(provider, "Jarvis", nil).Load(ctx)
			assert.Equal(t, builtIn, got)
		})
	}
}
