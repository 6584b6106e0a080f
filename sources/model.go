package sources

// Session is one in-progress playback reported by the activity feed.
type Session struct {
	SessionId string
	Username  string
	Title     string
	MediaType string
	// Duration of the media in seconds.
	Duration int64
	Player   string
	Quality  string
	// Progress in percent.
	Progress int
}

// QueueItem is one entry of a job queue.
type QueueItem struct {
	Id         int64
	Title      string
	Quality    string
	Size       int64
	Progress   int
	Status     string
	DownloadId string
}

// DownloadItem is one entry of the download client queue.
type DownloadItem struct {
	Name     string
	Progress int
	Speed    string
	Eta      string
	State    string
}
