package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/betbot/tradedash/internal/protocol"
)

// HeaderRequestID carries a per-request id for server-side log correlation.
const HeaderRequestID = "X-Request-ID"

// Client is the one-shot HTTP transport. It never retries.
type Client struct {
	client *resty.Client
}

// NewClient creates a client for host. A non-positive timeout means 30s.
func NewClient(host string, timeout time.Duration) *Client {
	host = strings.TrimSuffix(host, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(0)
	return &Client{client: client}
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", "tradedash")
	r.SetHeader(HeaderRequestID, uuid.NewString())
	return r
}

// PostAction posts body as JSON and decodes the {status, message} reply.
// The reply is decoded whatever the HTTP status, so server-reported failures
// come back as a response. A network error or an undecodable body is
// returned as an error.
func (c *Client) PostAction(ctx context.Context, endpoint string, body interface{}) (protocol.ActionResponse, error) {
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return protocol.ActionResponse{}, errors.Wrapf(err, "post %s", endpoint)
	}

	var out protocol.ActionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return protocol.ActionResponse{}, errors.Wrapf(err, "post %s: decode %s reply", endpoint, resp.Status())
	}
	log.Debugf("post %s -> %d status=%s", endpoint, resp.StatusCode(), out.Status)
	return out, nil
}
