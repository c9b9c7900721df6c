package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"smartreply/internal/errs"
	"smartreply/internal/ports"
)

// Client talks to the Business Profile reviews API. The bearer credential is
// obtained through a refresh-token exchange and cached by the token source;
// refreshing is idempotent, so concurrent requests at worst refresh twice.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ports.ReviewPlatform = (*Client)(nil)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
}

func NewClient(ctx context.Context, cfg Config) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}

	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, source))
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// reviewResponse is the slice of the platform's review resource we read.
type reviewResponse struct {
	ReviewReply *ports.ExternalReply `json:"reviewReply"`
}

// GetReply fetches the review and reports whether a reply already exists.
func (c *Client) GetReply(ctx context.Context, ref ports.ReviewRef) (ports.ExternalReply, bool, error) {
	if err := validateRef(ref); err != nil {
		return ports.ExternalReply{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reviewURL(ref), nil)
	if err != nil {
		return ports.ExternalReply{}, false, errs.Wrap(err, "build review request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.ExternalReply{}, false, errs.Wrap(err, "fetch review")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.ExternalReply{}, false, errs.Wrap(err, "read review response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.ExternalReply{}, false, statusError("fetch review", resp.StatusCode, body)
	}

	var review reviewResponse
	if err := json.Unmarshal(body, &review); err != nil {
		return ports.ExternalReply{}, false, errs.Wrap(err, "decode review response")
	}
	if review.ReviewReply == nil || strings.TrimSpace(review.ReviewReply.Comment) == "" {
		return ports.ExternalReply{}, false, nil
	}
	return *review.ReviewReply, true, nil
}

// PutReply upserts the reply on the platform and returns the raw response
// for the ledger's publish record.
func (c *Client) PutReply(ctx context.Context, ref ports.ReviewRef, comment string) (json.RawMessage, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if strings.TrimSpace(comment) == "" {
		return nil, errors.New("reply comment is required")
	}

	payload, err := json.Marshal(map[string]string{"comment": comment})
	if err != nil {
		return nil, errs.Wrap(err, "marshal reply payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.reviewURL(ref)+"/reply", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(err, "build reply request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, "put reply")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(err, "read reply response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("put reply", resp.StatusCode, body)
	}

	if len(body) == 0 || !json.Valid(body) {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

func (c *Client) reviewURL(ref ports.ReviewRef) string {
	return fmt.Sprintf(
		"%s/accounts/%s/locations/%s/reviews/%s",
		c.baseURL,
		url.PathEscape(ref.AccountID),
		url.PathEscape(ref.LocationID),
		url.PathEscape(ref.ReviewID),
	)
}

func validateRef(ref ports.ReviewRef) error {
	if strings.TrimSpace(ref.AccountID) == "" ||
		strings.TrimSpace(ref.LocationID) == "" ||
		strings.TrimSpace(ref.ReviewID) == "" {
		return errors.New("review ref requires accountId, locationId and reviewId")
	}
	return nil
}

func statusError(op string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return fmt.Errorf("%s: platform returned %d: %s", op, status, detail)
}
