package sources

import (
	"context"
	"net/url"
)

const queuePageSize = "50"

// Queue reads a Sonarr/Radarr-style v3 job queue.
type Queue struct {
	client
}

func NewQueue(name, baseURL, apiKey string) *Queue {
	c := newClient(name, baseURL)
	c.headers.Set("X-Api-Key", apiKey)
	return &Queue{client: c}
}

// Name is the source name given at construction.
func (q *Queue) Name() string {
	return q.name
}

type queueResponse struct {
	Records []struct {
		Id      int64  `json:"id"`
		Title   string `json:"title"`
		Quality struct {
			Quality struct {
				Name string `json:"name"`
			} `json:"quality"`
		} `json:"quality"`
		Size       number `json:"size"`
		SizeLeft   number `json:"sizeleft"`
		Status     string `json:"status"`
		DownloadId string `json:"downloadId"`
	} `json:"records"`
}

func (q *Queue) GetQueue(ctx context.Context) ([]QueueItem, error) {
	values := url.Values{}
	values.Set("pageSize", queuePageSize)
	var payload queueResponse
	err := q.getJSON(ctx, "/api/v3/queue", values, &payload)
	if err != nil {
		return nil, err
	}
	items := make([]QueueItem, 0, len(payload.Records))
	for _, r := range payload.Records {
		progress := 0
		if r.Size > 0 {
			progress = int((r.Size - r.SizeLeft) / r.Size * 100)
		}
		items = append(items, QueueItem{
			Id:         r.Id,
			Title:      r.Title,
			Quality:    r.Quality.Quality.Name,
			Size:       int64(r.Size),
			Progress:   progress,
			Status:     r.Status,
			DownloadId: r.DownloadId,
		})
	}
	return items, nil
}
