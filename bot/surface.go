package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"media-dashboard-bot/dashboard"
	"media-dashboard-bot/render"
)

// Sender is the part of *tele.Bot the surface needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Surface renders dashboards into Telegram messages carrying the dashboard
// controls.
type Surface struct {
	bot      Sender
	controls *tele.ReplyMarkup
}

func NewSurface(bot Sender, controls *tele.ReplyMarkup) *Surface {
	return &Surface{bot: bot, controls: controls}
}

func (s *Surface) Send(_ context.Context, channel int64, doc render.Document) (int, error) {
	msg, err := s.bot.Send(tele.ChatID(channel), doc.Text, tele.ModeHTML, tele.NoPreview, s.controls)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to send message to chat %v", channel)
	}
	return msg.ID, nil
}

func (s *Surface) Edit(_ context.Context, channel int64, messageId int, doc render.Document) error {
	_, err := s.bot.Edit(stored(channel, messageId), doc.Text, tele.ModeHTML, tele.NoPreview, s.controls)
	return s.translate(err, messageId)
}

func (s *Surface) Delete(_ context.Context, channel int64, messageId int) error {
	err := s.bot.Delete(stored(channel, messageId))
	return s.translate(err, messageId)
}

// Fetch checks that the message still exists. The Bot API cannot read a
// message by id, so the controls are re-applied instead: that fails with
// "not found" for deleted messages and is otherwise a no-op.
func (s *Surface) Fetch(_ context.Context, channel int64, messageId int) error {
	_, err := s.bot.EditReplyMarkup(stored(channel, messageId), s.controls)
	return s.translate(err, messageId)
}

func (s *Surface) translate(err error, messageId int) error {
	if err == nil || isNotModified(err) {
		return nil
	}
	if isNotFound(err) {
		return errors.Wrapf(dashboard.ErrMessageNotFound, "message %v", messageId)
	}
	return err
}

func stored(channel int64, messageId int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageId), ChatID: channel}
}

func isNotModified(err error) bool {
	return errors.Is(err, tele.ErrMessageNotModified) ||
		strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// isNotFound prefers telebot's sentinels. Telebot has none for a missing
// message on edit, so the API description is matched as well.
func isNotFound(err error) bool {
	if errors.Is(err, tele.ErrNotFoundToDelete) {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "message to edit not found") ||
		strings.Contains(text, "message to delete not found") ||
		strings.Contains(text, "message not found")
}
