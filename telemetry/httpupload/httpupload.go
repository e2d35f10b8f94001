// Package httpupload sends telemetry records to an HTTP API as bearer-authenticated JSON.
package httpupload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.sunprobe.dev/agent/logging"
	"go.sunprobe.dev/agent/telemetry"
)

// DefaultTimeout bounds a whole upload, connection included.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 512

// Config describes the endpoint records are posted to.
type Config struct {
	URL     string
	Path    string
	Token   string
	Timeout time.Duration
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.URL == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "api_url")
	}
	if conf.Token == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "api_token")
	}
	return nil
}

// A LinkChecker reports whether the network is reachable.
type LinkChecker interface {
	Connected(ctx context.Context) bool
}

// Uploader posts records to <url>/<path>.
type Uploader struct {
	client   *http.Client
	endpoint string
	token    string
	timeout  time.Duration
	link     LinkChecker
	logger   logging.Logger
}

var _ = telemetry.Uploader(&Uploader{})

// NewUploader returns an Uploader for conf. link may be nil when the link state is unknown.
func NewUploader(conf Config, link LinkChecker, logger logging.Logger) (*Uploader, error) {
	if err := conf.Validate("upload"); err != nil {
		return nil, err
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	endpoint := strings.TrimRight(conf.URL, "/")
	if p := strings.TrimLeft(conf.Path, "/"); p != "" {
		endpoint += "/" + p
	}
	return &Uploader{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		token:    conf.Token,
		timeout:  timeout,
		link:     link,
		logger:   logger,
	}, nil
}

// Endpoint returns the URL records are posted to.
func (u *Uploader) Endpoint() string {
	return u.endpoint
}

// Upload posts record as JSON. A down link fails with telemetry.ErrLinkDown without sending
// anything; any status outside 2xx is an error.
func (u *Uploader) Upload(ctx context.Context, record telemetry.Record) error {
	if u.link != nil && !u.link.Connected(ctx) {
		return telemetry.ErrLinkDown
	}

	body, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building upload request")
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := u.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "posting to %s", u.endpoint)
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("upload %s rejected with %s: %s",
			requestID, resp.Status, strings.TrimSpace(string(snippet)))
	}
	//nolint:errcheck
	io.Copy(io.Discard, resp.Body)
	u.logger.Debugw("uploaded record", "request_id", requestID, "status", resp.StatusCode)
	return nil
}
