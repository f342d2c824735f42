package player

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultUsersBaseURL = "https://users.roblox.com"

// UsersClient fetches player profiles from the Roblox Users API.
type UsersClient struct {
	baseURL string
	http    *http.Client
}

// NewUsersClient builds a Users API client with a bounded timeout.
func NewUsersClient(baseURL string, timeout time.Duration) *UsersClient {
	if baseURL == "" {
		baseURL = defaultUsersBaseURL
	}
	return &UsersClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type usersResponse struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	IsBanned    bool      `json:"isBanned"`
}

// FetchProfile looks up a player by user id.
func (c *UsersClient) FetchProfile(ctx context.Context, id string) (Profile, error) {
	url := fmt.Sprintf("%s/v1/users/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("users api: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("users api: unexpected status %d", res.StatusCode)
	}

	var body usersResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("users api: decode: %w", err)
	}

	return Profile{
		Name:        body.Name,
		DisplayName: body.DisplayName,
		Description: body.Description,
		Created:     body.Created,
		Banned:      body.IsBanned,
	}, nil
}

var _ ProfileClient = (*UsersClient)(nil)
