package notify

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/features/scores"
	"scorebot/internal/features/timers"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateRankings() { f.calls++ }

func TestScoreEvent(t *testing.T) {
	rec := &scores.ScoreRecord{ID: 7, Value: 85, ChatID: -1001, Status: scores.StatusApproved}

	t.Run("одобрение шлёт сообщение и сбрасывает кэш", func(t *testing.T) {
		sender := &fakeSender{}
		inv := &fakeInvalidator{}
		d := NewDispatcher(sender, nil, inv)

		d.ScoreEvent(scores.EventApproved, rec)

		require.Len(t, sender.sent, 1)
		assert.Equal(t, int64(-1001), sender.sent[0].ChatID)
		assert.Contains(t, sender.sent[0].Text, "#7")
		assert.Equal(t, 1, inv.calls)
	})

	t.Run("создание pending не трогает кэш рейтингов", func(t *testing.T) {
		inv := &fakeInvalidator{}
		d := NewDispatcher(&fakeSender{}, nil, inv)

		pending := &scores.ScoreRecord{ID: 8, Value: 10, ChatID: -1001, Status: scores.StatusPending}
		d.ScoreEvent(scores.EventCreated, pending)
		assert.Zero(t, inv.calls)
	})

	t.Run("ошибка отправки глотается", func(t *testing.T) {
		sender := &fakeSender{err: assert.AnError}
		d := NewDispatcher(sender, nil, nil)

		assert.NotPanics(t, func() {
			d.ScoreEvent(scores.EventRejected, rec)
		})
	})
}

func TestTimerFired(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, nil)

	d.TimerFired(&timers.Timer{Name: "регистрация", ChatID: -1001})

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "регистрация")
}
