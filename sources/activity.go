package sources

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

// Activity reads in-progress sessions from a Tautulli-compatible API.
type Activity struct {
	client
	apiKey string
}

func NewActivity(baseURL, apiKey string) *Activity {
	return &Activity{client: newClient("activity", baseURL), apiKey: apiKey}
}

type activityResponse struct {
	Response struct {
		Result  string `json:"result"`
		Message string `json:"message"`
		Data    struct {
			Sessions []struct {
				SessionId       string `json:"session_id"`
				User            string `json:"user"`
				FullTitle       string `json:"full_title"`
				MediaType       string `json:"media_type"`
				Duration        number `json:"duration"`
				Player          string `json:"player"`
				QualityProfile  string `json:"quality_profile"`
				ProgressPercent number `json:"progress_percent"`
			} `json:"sessions"`
		} `json:"data"`
	} `json:"response"`
}

func (a *Activity) GetActiveSessions(ctx context.Context) ([]Session, error) {
	values := url.Values{}
	values.Set("apikey", a.apiKey)
	values.Set("cmd", "get_activity")
	var payload activityResponse
	err := a.getJSON(ctx, "/api/v2", values, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Response.Result != "success" {
		return nil, a.fail(errors.Errorf("result %q: %v", payload.Response.Result, payload.Response.Message))
	}
	sessions := make([]Session, 0, len(payload.Response.Data.Sessions))
	for _, s := range payload.Response.Data.Sessions {
		sessions = append(sessions, Session{
			SessionId: s.SessionId,
			Username:  s.User,
			Title:     s.FullTitle,
			MediaType: s.MediaType,
			// Reported in milliseconds.
			Duration: int64(s.Duration) / 1000,
			Player:   s.Player,
			Quality:  s.QualityProfile,
			Progress: int(s.ProgressPercent),
		})
	}
	return sessions, nil
}
