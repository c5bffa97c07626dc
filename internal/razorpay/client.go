// Package razorpay implements payment.Gateway against the Razorpay REST API.
package razorpay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/order-invoicer/internal/domain/payment"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

var _ payment.Gateway = (*Client)(nil)

// Config holds API credentials and transport settings.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client fetches payments over HTTP.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

// New creates a Client. A nil tp disables outbound tracing.
func New(cfg Config, tp trace.TracerProvider) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var transport http.RoundTripper = http.DefaultTransport
	if tp != nil {
		transport = otelhttp.NewTransport(transport, otelhttp.WithTracerProvider(tp))
	}

	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// FetchPayment returns the payment with the given id. Unknown ids yield
// payment.ErrNotFound.
func (c *Client) FetchPayment(ctx context.Context, id string) (*payment.Payment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(payment.ErrNotFound, "empty payment id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch payment %q", id)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, body)
		if isNotFound(apiErr) {
			return nil, errors.Wrapf(payment.ErrNotFound, "payment %q: %s", id, apiErr)
		}
		return nil, apiErr
	}

	p, err := decodePayment(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode payment")
	}
	return p, nil
}

// isNotFound reports whether the API rejected the id as unknown. The API
// answers unknown ids with either 404 or a 400 stating the id does not exist.
func isNotFound(e *APIError) bool {
	if e.StatusCode == http.StatusNotFound {
		return true
	}
	return e.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(e.Description), "does not exist")
}

func decodePayment(body []byte) (*payment.Payment, error) {
	var p payment.Payment
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			p.ID = v
			return err
		case "status":
			v, err := d.Str()
			p.Status = payment.Status(v)
			return err
		case "amount":
			v, err := d.Int64()
			p.Amount = v
			return err
		case "currency":
			v, err := d.Str()
			p.Currency = v
			return err
		case "method":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			p.Method = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("payment without id")
	}
	return &p, nil
}

// decodeError parses {"error":{"code":...,"description":...}}. Malformed
// bodies still produce an APIError carrying the status.
func decodeError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	d := jx.DecodeBytes(body)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "code":
				v, err := d.Str()
				e.Code = v
				return err
			case "description":
				v, err := d.Str()
				e.Description = v
				return err
			default:
				return d.Skip()
			}
		})
	})
	return e
}
