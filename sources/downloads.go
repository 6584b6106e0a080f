package sources

import (
	"context"
	"net/url"
)

// Downloads reads the queue of a SABnzbd-compatible download client.
type Downloads struct {
	client
	apiKey string
}

func NewDownloads(baseURL, apiKey string) *Downloads {
	return &Downloads{client: newClient("downloads", baseURL), apiKey: apiKey}
}

type downloadsResponse struct {
	Queue struct {
		Speed string `json:"speed"`
		Slots []struct {
			Filename   string `json:"filename"`
			Percentage number `json:"percentage"`
			TimeLeft   string `json:"timeleft"`
			Status     string `json:"status"`
		} `json:"slots"`
	} `json:"queue"`
}

// GetActiveDownloads returns the client queue. SABnzbd only reports an
// aggregate speed, so the first active item carries it.
func (d *Downloads) GetActiveDownloads(ctx context.Context) ([]DownloadItem, error) {
	values := url.Values{}
	values.Set("mode", "queue")
	values.Set("output", "json")
	values.Set("apikey", d.apiKey)
	var payload downloadsResponse
	err := d.getJSON(ctx, "/api", values, &payload)
	if err != nil {
		return nil, err
	}
	items := make([]DownloadItem, 0, len(payload.Queue.Slots))
	speedAssigned := false
	for _, slot := range payload.Queue.Slots {
		item := DownloadItem{
			Name:     slot.Filename,
			Progress: int(slot.Percentage),
			Eta:      slot.TimeLeft,
			State:    slot.Status,
		}
		if !speedAssigned && slot.Status == "Downloading" {
			item.Speed = payload.Queue.Speed
			speedAssigned = true
		}
		items = append(items, item)
	}
	return items, nil
}
