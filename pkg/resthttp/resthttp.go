// Package resthttp holds the resty plumbing shared by the REST adapters.
package resthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	headerKeyRequestID = "X-Request-Id"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

func New(endpoint string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(endpoint, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Charset", "utf-8").
		SetTimeout(timeout)
}

func Request(ctx context.Context, client *resty.Client) *resty.Request {
	return client.R().SetContext(ctx)
}

func WithRequestID(ctx context.Context, client *resty.Client, requestID string) *resty.Request {
	return Request(ctx, client).SetHeader(headerKeyRequestID, requestID)
}

// Execute sends the request and decodes a successful body into resp.
// Transport failures, 5xx and 429 come back as transient errors.
func Execute(request *resty.Request, method, url string, body any, resp any) error {
	if body != nil {
		request = request.SetBody(body)
	}

	r, err := request.Execute(strings.ToUpper(method), url)
	if err != nil {
		return core.Transient(errors.Wrapf(err, "%s %s", method, url))
	}
	return ParseResponse(r, resp)
}

type errorBody struct {
	Error string `json:"error"`
}

func ParseResponse(r *resty.Response, obj any) error {
	if !r.IsSuccess() {
		var body errorBody
		msg := strings.TrimSpace(string(r.Body()))
		if json.Unmarshal(r.Body(), &body) == nil && body.Error != "" {
			msg = body.Error
		}

		err := errors.Errorf("%s %s: %d %s", r.Request.Method, r.Request.URL, r.StatusCode(), msg)
		switch {
		case r.StatusCode() == http.StatusNotFound:
			return errors.Wrap(ErrNotFound, err.Error())
		case r.StatusCode() == http.StatusTooManyRequests, r.StatusCode() >= http.StatusInternalServerError:
			return core.Transient(err)
		default:
			return err
		}
	}

	if obj != nil {
		if err := json.Unmarshal(r.Body(), obj); err != nil {
			return errors.Wrapf(err, "decode %s", r.Request.URL)
		}
	}
	return nil
}
