package nef

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/observability"
)

// apiLabel maps a core URL to its metrics label.
func apiLabel(url string) string {
	switch {
	case strings.Contains(url, "3gpp-as-session-with-qos"):
		return "as-session-with-qos"
	case strings.Contains(url, "3gpp-monitoring-event"):
		return "monitoring-event"
	case strings.Contains(url, "3gpp-traffic-influence"):
		return "traffic-influence"
	default:
		return "other"
	}
}

// DefaultTimeout bounds every outbound core call. The gateway performs no
// retries; a slow core surfaces as a single timed-out request.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the core, carrying the raw status
// and body for the error mapper.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("core returned status %d: %s", e.StatusCode, e.Body)
}

// Client issues 3GPP-shaped HTTP requests against one core's exposure
// endpoints. Each northbound API has its own base URL so cores that split
// them across hosts are supported.
type Client struct {
	QoSBaseURL        string
	MonitoringBaseURL string
	TrafficBaseURL    string
	ScsAsID           string

	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig configures a NEF client.
type ClientConfig struct {
	QoSBaseURL        string
	MonitoringBaseURL string
	TrafficBaseURL    string
	ScsAsID           string
	Timeout           time.Duration
	Logger            *zap.Logger
}

// NewClient creates a NEF client. The scsAsId names this gateway toward the
// core and appears in every subscription path.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		QoSBaseURL:        cfg.QoSBaseURL,
		MonitoringBaseURL: cfg.MonitoringBaseURL,
		TrafficBaseURL:    cfg.TrafficBaseURL,
		ScsAsID:           cfg.ScsAsID,
		httpClient:        &http.Client{Timeout: timeout},
		logger:            logger,
	}
}

// qosSubscriptionsURL builds the AsSessionWithQoS collection or resource URL.
func (c *Client) qosSubscriptionsURL(subscriptionID string) string {
	base := fmt.Sprintf("%s/3gpp-as-session-with-qos/v1/%s/subscriptions", c.QoSBaseURL, c.ScsAsID)
	if subscriptionID == "" {
		return base
	}
	return base + "/" + subscriptionID
}

// monitoringSubscriptionsURL builds the MonitoringEvent collection or
// resource URL.
func (c *Client) monitoringSubscriptionsURL(subscriptionID string) string {
	base := fmt.Sprintf("%s/3gpp-monitoring-event/v1/%s/subscriptions", c.MonitoringBaseURL, c.ScsAsID)
	if subscriptionID == "" {
		return base
	}
	return base + "/" + subscriptionID
}

// trafficInfluenceURL builds the TrafficInfluence collection or resource URL.
func (c *Client) trafficInfluenceURL(subscriptionID string) string {
	base := fmt.Sprintf("%s/3gpp-traffic-influence/v1/%s/subscriptions", c.TrafficBaseURL, c.ScsAsID)
	if subscriptionID == "" {
		return base
	}
	return base + "/" + subscriptionID
}

// CreateQoSSubscription posts a new AsSessionWithQoS subscription.
func (c *Client) CreateQoSSubscription(ctx context.Context, sub *AsSessionWithQoSSubscription) (*AsSessionWithQoSSubscription, error) {
	var out AsSessionWithQoSSubscription
	if err := c.doJSON(ctx, http.MethodPost, c.qosSubscriptionsURL(""), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQoSSubscription fetches one AsSessionWithQoS subscription.
func (c *Client) GetQoSSubscription(ctx context.Context, subscriptionID string) (*AsSessionWithQoSSubscription, error) {
	var out AsSessionWithQoSSubscription
	if err := c.doJSON(ctx, http.MethodGet, c.qosSubscriptionsURL(subscriptionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQoSSubscription replaces an AsSessionWithQoS subscription, used to
// extend a session's usage threshold.
func (c *Client) UpdateQoSSubscription(ctx context.Context, subscriptionID string, sub *AsSessionWithQoSSubscription) (*AsSessionWithQoSSubscription, error) {
	var out AsSessionWithQoSSubscription
	if err := c.doJSON(ctx, http.MethodPut, c.qosSubscriptionsURL(subscriptionID), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteQoSSubscription removes an AsSessionWithQoS subscription.
func (c *Client) DeleteQoSSubscription(ctx context.Context, subscriptionID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.qosSubscriptionsURL(subscriptionID), nil, nil)
}

// CreateMonitoringSubscription posts a monitoring event subscription. The
// response may carry immediate reports inline.
func (c *Client) CreateMonitoringSubscription(ctx context.Context, sub *MonitoringEventSubscription) (*MonitoringEventSubscription, error) {
	var out MonitoringEventSubscription
	if err := c.doJSON(ctx, http.MethodPost, c.monitoringSubscriptionsURL(""), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMonitoringSubscription removes a monitoring event subscription.
func (c *Client) DeleteMonitoringSubscription(ctx context.Context, subscriptionID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.monitoringSubscriptionsURL(subscriptionID), nil, nil)
}

// CreateTrafficInfluenceSubscription posts a traffic influence subscription.
func (c *Client) CreateTrafficInfluenceSubscription(ctx context.Context, sub *TrafficInfluSub) (*TrafficInfluSub, error) {
	var out TrafficInfluSub
	if err := c.doJSON(ctx, http.MethodPost, c.trafficInfluenceURL(""), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTrafficInfluenceSubscription replaces a traffic influence
// subscription.
func (c *Client) UpdateTrafficInfluenceSubscription(ctx context.Context, subscriptionID string, sub *TrafficInfluSub) (*TrafficInfluSub, error) {
	var out TrafficInfluSub
	if err := c.doJSON(ctx, http.MethodPut, c.trafficInfluenceURL(subscriptionID), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTrafficInfluenceSubscription removes a traffic influence
// subscription.
func (c *Client) DeleteTrafficInfluenceSubscription(ctx context.Context, subscriptionID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.trafficInfluenceURL(subscriptionID), nil, nil)
}

// GetJSON issues a GET against an arbitrary core URL and decodes the
// answer. Adapters use it for profile and identity lookups that sit outside
// the three standardized APIs.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

// GetRaw issues a GET and returns the raw body, for non-JSON endpoints such
// as a metrics exposition page.
func (c *Client) GetRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("core request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read core response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// doJSON performs a single synchronous request. Non-2xx answers become a
// StatusError with the raw body attached; there are no retries.
func (c *Client) doJSON(ctx context.Context, method, url string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("core request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		if m := observability.ActiveMetrics(); m != nil {
			m.RecordNEFRequest(apiLabel(url), method, time.Since(start), err)
		}
		return fmt.Errorf("core request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read core response: %w", err)
	}

	c.logger.Debug("core request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if m := observability.ActiveMetrics(); m != nil {
			m.RecordNEFRequest(apiLabel(url), method, time.Since(start), statusErr)
		}
		return statusErr
	}

	if m := observability.ActiveMetrics(); m != nil {
		m.RecordNEFRequest(apiLabel(url), method, time.Since(start), nil)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode core response: %w", err)
		}
	}
	return nil
}
