package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Notification is the push payload fanned out to a recipient's devices.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

type Result struct {
	Skipped bool
	Success int
	Failure int
}

// Client talks to the FCM legacy HTTP endpoint.
type Client struct {
	ServerKey string
	BaseURL   string
	HTTP      *http.Client
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

func (c *Client) Send(ctx context.Context, tokens []string, n Notification) (Result, int, error) {
	if len(tokens) == 0 {
		return Result{Skipped: true}, 0, nil
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: n.Title, Body: n.Body},
		Data:            n.Data,
	})
	if err != nil {
		return Result{}, 0, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fcm.googleapis.com"
	}
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/fcm/send", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key="+c.ServerKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Result{}, 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out fcmResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, resp.StatusCode, errors.New("fcm send failed: " + resp.Status)
	}
	return Result{Success: out.Success, Failure: out.Failure}, resp.StatusCode, nil
}
