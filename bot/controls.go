package bot

import (
	tele "gopkg.in/telebot.v3"
)

// controlSet is the inline keyboard attached to every dashboard message.
type controlSet struct {
	markup    *tele.ReplyMarkup
	refresh   tele.Btn
	bottom    tele.Btn
	streams   tele.Btn
	downloads tele.Btn
	history   tele.Btn
}

func newControls() controlSet {
	markup := &tele.ReplyMarkup{}
	c := controlSet{
		markup:    markup,
		refresh:   markup.Data("🔄 Refresh", "dash_refresh"),
		bottom:    markup.Data("⬇️ Move down", "dash_bottom"),
		streams:   markup.Data("▶️ Streams", "dash_streams"),
		downloads: markup.Data("📥 Downloads", "dash_downloads"),
		history:   markup.Data("🕘 History", "dash_history"),
	}
	markup.Inline(
		markup.Row(c.refresh, c.bottom),
		markup.Row(c.streams, c.downloads, c.history),
	)
	return c
}
