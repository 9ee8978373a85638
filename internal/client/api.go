package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"faciliroom/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// APIClient talks to the room HTTP API. The API is a black box from the
// discussion core's point of view: opaque identifiers in, acknowledgements or
// errors out.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken attaches the bearer token from an anonymous sign-in to all
// subsequent requests.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

type anonymousIdentity struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// SignInAnonymously obtains a token from the auth endpoint. Passing the uid
// from a previous run keeps the identity stable; passing "" mints a new one.
// The token is retained for all subsequent requests.
func (c *APIClient) SignInAnonymously(existingUID string) (uid string, err error) {
	var identity anonymousIdentity
	body := map[string]string{"uid": existingUID}
	if err := c.do(http.MethodPost, "/api/v1/auth/anonymous", body, &identity); err != nil {
		return "", err
	}
	c.token = identity.Token
	return identity.UID, nil
}

func (c *APIClient) CreateRoom(username string) (*models.Room, error) {
	var room models.Room
	err := c.do(http.MethodPost, "/api/v1/rooms",
		map[string]string{"username": username}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) FetchRoom(roomID string) (*models.Room, error) {
	var room models.Room
	err := c.do(http.MethodGet, "/api/v1/rooms/"+roomID, nil, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) JoinRoom(roomID, username string) (*models.Room, error) {
	var room models.Room
	err := c.do(http.MethodPost, "/api/v1/rooms/"+roomID+"/join",
		map[string]string{"username": username}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) UpdateSettings(roomID, topic string, duration int) (*models.Room, error) {
	var room models.Room
	err := c.do(http.MethodPost, "/api/v1/rooms/"+roomID+"/settings",
		map[string]interface{}{"topic": topic, "duration": duration}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) FinishRoom(roomID string) error {
	return c.do(http.MethodPost, "/api/v1/rooms/"+roomID+"/finish", nil, nil)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *APIClient) do(method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrRoomNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
