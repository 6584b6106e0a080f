// Package render turns aggregated state into Telegram HTML documents. Every
// function here is pure: the same state always gives the same document.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"media-dashboard-bot/db"
	"media-dashboard-bot/sources"
)

const (
	SectionActivity  = "activity"
	SectionDownloads = "downloads"
	SectionHistory   = "history"

	historyLines = 5
)

// Document is a rendered message body in Telegram HTML.
type Document struct {
	Text string
}

// QueueState is one job queue as seen during a poll.
type QueueState struct {
	Source db.Source
	Items  []sources.QueueItem
	Err    error
}

// State is everything one render needs. Each section carries its own error so
// an outage in one source only blanks that section.
type State struct {
	Now time.Time

	Sessions    []sources.Session
	SessionsErr error

	Queues       []QueueState
	Downloads    []sources.DownloadItem
	DownloadsErr error

	RecentWatches   []db.WatchEvent
	RecentDownloads []db.DownloadEvent
	HistoryErr      error
}

// FailedSections lists the sections that will render as placeholders.
func (s State) FailedSections() []string {
	var failed []string
	if s.SessionsErr != nil {
		failed = append(failed, SectionActivity)
	}
	if s.downloadsFailed() {
		failed = append(failed, SectionDownloads)
	}
	if s.HistoryErr != nil {
		failed = append(failed, SectionHistory)
	}
	return failed
}

func (s State) downloadsFailed() bool {
	if s.DownloadsErr != nil {
		return true
	}
	for _, q := range s.Queues {
		if q.Err != nil {
			return true
		}
	}
	return false
}

// Dashboard renders the full live view.
func Dashboard(s State) Document {
	var b strings.Builder
	b.WriteString("<b>📺 Media dashboard</b>\n")
	fmt.Fprintf(&b, "<i>Updated %v</i>\n\n", s.Now.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString(activitySection(s))
	b.WriteString("\n")
	b.WriteString(downloadsSection(s))
	b.WriteString("\n")
	b.WriteString(historySection(s))
	return Document{Text: b.String()}
}

// Streams renders only the live activity section.
func Streams(s State) Document {
	return Document{Text: activitySection(s)}
}

// Downloads renders only the queues and the download client.
func Downloads(s State) Document {
	return Document{Text: downloadsSection(s)}
}

// History renders the recent history with a longer tail than the dashboard.
func History(watches []db.WatchEvent, downloads []db.DownloadEvent, now time.Time) Document {
	var b strings.Builder
	b.WriteString("<b>🕘 Recently watched</b>\n")
	if len(watches) == 0 {
		b.WriteString("Nothing yet.\n")
	}
	for _, w := range watches {
		fmt.Fprintf(&b, "• %v — %v (%v)\n", escape(w.Username), escape(w.Title), humanize.RelTime(w.Timestamp, now, "ago", "from now"))
	}
	b.WriteString("\n<b>📥 Recently grabbed</b>\n")
	if len(downloads) == 0 {
		b.WriteString("Nothing yet.\n")
	}
	for _, d := range downloads {
		fmt.Fprintf(&b, "• [%v] %v %v (%v)\n", d.Source, escape(d.Title), humanize.Bytes(uint64(nonNegative(d.Size))), humanize.RelTime(d.Timestamp, now, "ago", "from now"))
	}
	return Document{Text: b.String()}
}

// Stats renders per-user and per-media-type watch totals.
func Stats(byUser []db.UserStat, byType []db.MediaTypeStat, period string) Document {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📊 Watch stats (%v)</b>\n\n<b>By user</b>\n", escape(period))
	if len(byUser) == 0 {
		b.WriteString("No plays.\n")
	}
	for _, u := range byUser {
		fmt.Fprintf(&b, "• %v: %v plays, %v\n", escape(u.Username), u.Plays, formatSeconds(u.TotalDuration))
	}
	b.WriteString("\n<b>By type</b>\n")
	if len(byType) == 0 {
		b.WriteString("No plays.\n")
	}
	for _, m := range byType {
		fmt.Fprintf(&b, "• %v: %v plays, %v\n", escape(orUnknown(m.MediaType)), m.Plays, formatSeconds(m.TotalDuration))
	}
	return Document{Text: b.String()}
}

func activitySection(s State) string {
	var b strings.Builder
	b.WriteString("<b>▶️ Now playing</b>\n")
	if s.SessionsErr != nil {
		b.WriteString(placeholder("Activity"))
		return b.String()
	}
	if len(s.Sessions) == 0 {
		b.WriteString("Nobody is watching.\n")
		return b.String()
	}
	for _, session := range s.Sessions {
		fmt.Fprintf(&b, "• <b>%v</b> — %v\n  %v · %v · %v%% of %v\n",
			escape(session.Username),
			escape(session.Title),
			escape(orUnknown(session.Player)),
			escape(orUnknown(session.Quality)),
			session.Progress,
			formatSeconds(session.Duration),
		)
	}
	return b.String()
}

func downloadsSection(s State) string {
	var b strings.Builder
	b.WriteString("<b>⬇️ Downloads</b>\n")
	for _, q := range s.Queues {
		fmt.Fprintf(&b, "<i>%v</i>\n", q.Source)
		if q.Err != nil {
			b.WriteString(placeholder(string(q.Source)))
			continue
		}
		if len(q.Items) == 0 {
			b.WriteString("Queue is empty.\n")
			continue
		}
		for _, item := range q.Items {
			fmt.Fprintf(&b, "• %v [%v] %v%% of %v\n",
				escape(item.Title),
				escape(orUnknown(item.Quality)),
				item.Progress,
				humanize.Bytes(uint64(nonNegative(item.Size))),
			)
		}
	}
	b.WriteString("<i>client</i>\n")
	if s.DownloadsErr != nil {
		b.WriteString(placeholder("Download client"))
		return b.String()
	}
	if len(s.Downloads) == 0 {
		b.WriteString("Idle.\n")
		return b.String()
	}
	for _, d := range s.Downloads {
		line := fmt.Sprintf("• %v %v%% %v", escape(d.Name), d.Progress, escape(d.State))
		if d.Speed != "" {
			line = fmt.Sprintf("%v @ %v", line, escape(d.Speed))
		}
		if d.Eta != "" {
			line = fmt.Sprintf("%v, eta %v", line, escape(d.Eta))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func historySection(s State) string {
	var b strings.Builder
	b.WriteString("<b>🕘 History</b>\n")
	if s.HistoryErr != nil {
		b.WriteString(placeholder("History"))
		return b.String()
	}
	if len(s.RecentWatches) == 0 && len(s.RecentDownloads) == 0 {
		b.WriteString("Nothing recorded yet.\n")
		return b.String()
	}
	for i, w := range s.RecentWatches {
		if i == historyLines {
			break
		}
		fmt.Fprintf(&b, "• ▶️ %v — %v (%v)\n", escape(w.Username), escape(w.Title), humanize.RelTime(w.Timestamp, s.Now, "ago", "from now"))
	}
	for i, d := range s.RecentDownloads {
		if i == historyLines {
			break
		}
		fmt.Fprintf(&b, "• ⬇️ %v (%v)\n", escape(d.Title), humanize.RelTime(d.Timestamp, s.Now, "ago", "from now"))
	}
	return b.String()
}

func placeholder(what string) string {
	return fmt.Sprintf("⚠️ %v unavailable\n", escape(what))
}

func escape(s string) string {
	return html.EscapeString(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func formatSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%vh%02vm", h, m)
	}
	return fmt.Sprintf("%vm", m)
}
