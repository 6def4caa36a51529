package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weatherbot/internal/common"
	"github.com/i474232898/weatherbot/internal/weather"
)

// DefaultBaseURL is the Twitter v1.1 REST API.
const DefaultBaseURL = "https://api.twitter.com/1.1"

var (
	// ErrDuplicate means the platform rejected a post identical to a recent one.
	ErrDuplicate = errors.New("duplicate post")
	// ErrRateLimited means the account hit a posting or request limit.
	ErrRateLimited = errors.New("social api rate limited")
	// ErrAPI covers every other error response.
	ErrAPI = errors.New("social api error")
)

// Platform error codes.
const (
	codeRateLimit     = 88
	codeDailyLimit    = 185
	codeDuplicatePost = 187
)

// Credentials are the OAuth1 user-context keys.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Point is a GeoJSON point; Coordinates is [longitude, latitude].
type Point struct {
	Coordinates [2]float64 `json:"coordinates"`
}

type BoundingBox struct {
	Coordinates [][][2]float64 `json:"coordinates"`
}

type Place struct {
	FullName    string      `json:"full_name"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Tweet is the subset of a status the bot reads.
type Tweet struct {
	ID          string `json:"id_str"`
	Text        string `json:"text"`
	Coordinates *Point `json:"coordinates"`
	Place       *Place `json:"place"`
}

type apiErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client talks to the social platform on behalf of the bot account.
type Client struct {
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	// Posting is not idempotent: a 5xx may follow an accepted status.
	postCfg common.HTTPClientConfig
}

// NewClient returns a client that signs every request with creds.
func NewClient(creds Credentials, baseURL string, timeout time.Duration) *Client {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	httpClient := config.Client(oauth1.NoContext, token)
	httpClient.Timeout = timeout
	return NewClientWithHTTP(httpClient, baseURL)
}

// NewClientWithHTTP uses httpClient as is; it must already authenticate requests.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	passClientErrors := func(code int) bool {
		return code >= 400 && code < 500
	}
	noRetry := common.DefaultBackoff
	noRetry.MaxRetries = 0

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: common.HTTPClientConfig{
			Client:     httpClient,
			Backoff:    common.DefaultBackoff,
			PassStatus: passClientErrors,
		},
		postCfg: common.HTTPClientConfig{
			Client:     httpClient,
			Backoff:    noRetry,
			PassStatus: passClientErrors,
		},
		circuit: common.NewBreaker("social"),
	}
}

// Post publishes text, tagged with loc when it is not nil.
func (c *Client) Post(ctx context.Context, text string, loc *weather.Location) (Tweet, error) {
	form := url.Values{}
	form.Set("status", text)
	if loc != nil {
		form.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		form.Set("long", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
		form.Set("display_coordinates", "true")
	}

	var tweet Tweet
	err := c.send(ctx, c.postCfg, &tweet, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/statuses/update.json", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	return tweet, err
}

// Timeline returns up to count of user's most recent posts, retweets excluded.
func (c *Client) Timeline(ctx context.Context, user string, count int) ([]Tweet, error) {
	values := url.Values{}
	values.Set("screen_name", user)
	values.Set("count", strconv.Itoa(count))
	values.Set("include_rts", "false")

	var tweets []Tweet
	err := c.do(ctx, &tweets, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.baseURL+"/statuses/user_timeline.json?"+values.Encode(), nil)
	})
	return tweets, err
}

// SendDirectMessage sends text to the authenticated account itself.
func (c *Client) SendDirectMessage(ctx context.Context, text string) error {
	var me struct {
		ID string `json:"id_str"`
	}
	err := c.do(ctx, &me, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.baseURL+"/account/verify_credentials.json", nil)
	})
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}

	event := map[string]any{
		"event": map[string]any{
			"type": "message_create",
			"message_create": map[string]any{
				"target":       map[string]string{"recipient_id": me.ID},
				"message_data": map[string]string{"text": text},
			},
		},
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return c.do(ctx, nil, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/direct_messages/events/new.json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, out any, buildRequest func() (*http.Request, error)) error {
	return c.send(ctx, c.httpCfg, out, buildRequest)
}

func (c *Client) send(ctx context.Context, cfg common.HTTPClientConfig, out any, buildRequest func() (*http.Request, error)) error {
	resp, err := common.DoRequestWithResilience(ctx, cfg, c.circuit, buildRequest)
	if err != nil {
		if errors.Is(err, common.ErrRateLimited) {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode social response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload apiErrors
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	if len(payload.Errors) == 0 {
		return fmt.Errorf("%w: status %d", ErrAPI, resp.StatusCode)
	}
	e := payload.Errors[0]
	switch e.Code {
	case codeDuplicatePost:
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Message)
	case codeRateLimit, codeDailyLimit:
		return fmt.Errorf("%w: %s", ErrRateLimited, e.Message)
	default:
		return fmt.Errorf("%w: status %d code %d: %s", ErrAPI, resp.StatusCode, e.Code, e.Message)
	}
}
