package assistant

import (
	"context"

	"github.com/lewisedginton/friday_assistant/internal/learning"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// dispatch queues the writes that follow a turn. save is false when there is
// no reply worth keeping.
func (a *Assistant) dispatch(userText, reply, prior string, save bool) {
	at := a.now()

	if save {
		a.submit("save_conversation", func(ctx context.Context) error {
			_, err := a.cfg.Store.SaveConversation(ctx, memory_store.ConversationTurn{
				Timestamp:         at,
				UserMessage:       userText,
				AssistantResponse: reply,
				Topic:             learning.Topic(userText),
				Sentiment:         learning.Sentiment(userText),
			})
			return err
		})
	}

	a.submit("learn", func(ctx context.Context) error {
		_, err := a.cfg.Learner.Apply(ctx, learning.Observation{UserText: userText, PriorResponse: prior})
		return err
	})

	if save && a.cfg.Retention != (memory_store.RetentionPolicy{}) && a.countSaved() {
		a.submit("prune", func(ctx context.Context) error {
			res, err := a.cfg.Store.Prune(ctx, a.cfg.Retention)
			if err != nil {
				return err
			}
			if res.Memories > 0 || res.Lessons > 0 {
				a.log.Info("Pruned memory store",
					logger.Int64Field("memories", res.Memories),
					logger.Int64Field("lessons", res.Lessons),
				)
			}
			return nil
		})
	}
}

// countSaved records a saved turn and reports whether a prune is due.
func (a *Assistant) countSaved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved++
	return a.saved%a.cfg.PruneEvery == 0
}

// submit hands task to the pool, or runs it now without a pool.
func (a *Assistant) submit(name string, task func(ctx context.Context) error) {
	if a.cfg.Pool != nil {
		a.cfg.Pool.Submit(name, task)
		return
	}
	if err := task(context.Background()); err != nil {
		a.log.Warn("Background task failed", logger.StringField("task", name), logger.ErrorField(err))
	}
}
