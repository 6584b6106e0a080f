package bot

import (
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"media-dashboard-bot/render"
)

// Origin is where a request came from: a typed command or a dashboard control.
// Handlers talk back through it without knowing which one it is.
type Origin interface {
	Channel() int64
	Sender() int64
	// Respond acknowledges the request with a short notice.
	Respond(text string) error
	// Reply posts a document into the channel.
	Reply(doc render.Document) error
}

// CommandOrigin is a chat message with a command.
type CommandOrigin struct {
	c tele.Context
}

func (o CommandOrigin) Channel() int64 {
	return o.c.Chat().ID
}

func (o CommandOrigin) Sender() int64 {
	if o.c.Sender() == nil {
		return 0
	}
	return o.c.Sender().ID
}

func (o CommandOrigin) Respond(text string) error {
	return o.c.Send(text)
}

func (o CommandOrigin) Reply(doc render.Document) error {
	return o.c.Send(doc.Text, tele.ModeHTML, tele.NoPreview)
}

// ControlOrigin is a press on one of the dashboard buttons. Telegram expects
// every callback to be answered exactly once; finish answers it if Respond
// did not.
type ControlOrigin struct {
	c        tele.Context
	answered bool
}

func (o *ControlOrigin) Channel() int64 {
	return o.c.Chat().ID
}

func (o *ControlOrigin) Sender() int64 {
	if o.c.Sender() == nil {
		return 0
	}
	return o.c.Sender().ID
}

func (o *ControlOrigin) Respond(text string) error {
	o.answered = true
	return o.c.Respond(&tele.CallbackResponse{Text: text})
}

func (o *ControlOrigin) Reply(doc render.Document) error {
	return o.c.Send(doc.Text, tele.ModeHTML, tele.NoPreview)
}

func (o *ControlOrigin) finish() {
	if o.answered {
		return
	}
	err := o.c.Respond()
	if err != nil {
		slog.Warn("unable to answer callback", "error", err)
	}
}
