package crm

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public Systeme.io API host.
	DefaultBaseURL = "https://api.systeme.io"

	contactsPath = "/api/contacts"
	tagsPath     = "/api/tags"

	pageLimit    = 100
	maxPages     = 50
	maxBodyBytes = 1 << 20
)

var crmRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "crm_requests_total", Help: "Count of CRM API calls by operation and outcome"},
	[]string{"operation", "outcome"},
)

func init() { prometheus.MustRegister(crmRequests) }

// ContactStore is the subset of the CRM used by the application.
type ContactStore interface {
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, req CreateContactRequest) (*Contact, error)
	GetContact(ctx context.Context, contactID ID) (*Contact, error)
	UpdateContact(ctx context.Context, contactID ID, req UpdateContactRequest) (*Contact, error)
	DeleteContact(ctx context.Context, contactID ID) error
	ListTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	AddTagToContact(ctx context.Context, contactID, tagID ID) error
	RemoveTagFromContact(ctx context.Context, contactID, tagID ID) error
}

// Config configures the CRM client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a Systeme.io API client guarded by a circuit breaker.
// Every call is attempted once; there are no retries.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ ContactStore = (*Client)(nil)

// NewClient creates a CRM client. An empty API key is a configuration error.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("crm: API key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "systeme-crm",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("CRM circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

type rawResponse struct {
	status int
	body   []byte
}

// do sends one request. Transport errors and 5xx answers count against the breaker;
// 4xx answers are the caller's problem and do not.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*rawResponse, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("crm: encode %s body: %w", op, err)
		}
		payload = b
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			if method == http.MethodPatch {
				req.Header.Set("Content-Type", "application/merge-patch+json")
			} else {
				req.Header.Set("Content-Type", "application/json")
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return raw, &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Message: extractMessage(data)}
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			crmRequests.WithLabelValues(op, "rejected").Inc()
			return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
		}
		crmRequests.WithLabelValues(op, "error").Inc()
		c.logger.Debug("CRM request failed", zap.String("operation", op), zap.String("path", path), zap.Error(err))
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("crm: %s %s: %w", method, path, err)
	}

	raw := result.(*rawResponse)
	if raw.status >= http.StatusBadRequest {
		crmRequests.WithLabelValues(op, "rejected").Inc()
		return nil, &APIError{StatusCode: raw.status, Method: method, Path: path, Message: extractMessage(raw.body)}
	}
	crmRequests.WithLabelValues(op, "ok").Inc()
	return raw, nil
}

func decodeInto(raw *rawResponse, out any) error {
	if len(bytes.TrimSpace(raw.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}

// FindContactByEmail returns the first listed contact whose email matches case-insensitively,
// or ErrNotFound. The list is filtered rather than trusted: the email query parameter is not
// an exact-match filter on every CRM deployment.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("crm: email is required")
	}
	raw, err := c.do(ctx, "find_contact", http.MethodGet, contactsPath+"?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}
	contacts, _, err := decodeList[Contact](raw.body)
	if err != nil {
		return nil, fmt.Errorf("crm: decode contacts: %w", err)
	}
	for i := range contacts {
		if strings.EqualFold(strings.TrimSpace(contacts[i].Email), email) {
			return &contacts[i], nil
		}
	}
	return nil, fmt.Errorf("contact with email '%s': %w", email, ErrNotFound)
}

// CreateContact creates a contact. It does not check for an existing one.
func (c *Client) CreateContact(ctx context.Context, req CreateContactRequest) (*Contact, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, errors.New("crm: email is required")
	}
	raw, err := c.do(ctx, "create_contact", http.MethodPost, contactsPath, req)
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := decodeInto(raw, &contact); err != nil {
		return nil, err
	}
	if contact.Email == "" {
		contact.Email = req.Email
	}
	return &contact, nil
}

// GetContact fetches a contact including its tags.
func (c *Client) GetContact(ctx context.Context, contactID ID) (*Contact, error) {
	raw, err := c.do(ctx, "get_contact", http.MethodGet, contactsPath+"/"+url.PathEscape(string(contactID)), nil)
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := decodeInto(raw, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact applies a partial update to a contact.
func (c *Client) UpdateContact(ctx context.Context, contactID ID, req UpdateContactRequest) (*Contact, error) {
	raw, err := c.do(ctx, "update_contact", http.MethodPatch, contactsPath+"/"+url.PathEscape(string(contactID)), req)
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := decodeInto(raw, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// DeleteContact removes a contact.
func (c *Client) DeleteContact(ctx context.Context, contactID ID) error {
	_, err := c.do(ctx, "delete_contact", http.MethodDelete, contactsPath+"/"+url.PathEscape(string(contactID)), nil)
	return err
}

// ListTags returns every tag defined in the CRM, following pagination.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var all []Tag
	after := ""
	for page := 0; page < maxPages; page++ {
		path := tagsPath + "?limit=" + strconv.Itoa(pageLimit)
		if after != "" {
			path += "&startingAfter=" + url.QueryEscape(after)
		}
		raw, err := c.do(ctx, "list_tags", http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		tags, hasMore, err := decodeList[Tag](raw.body)
		if err != nil {
			return nil, fmt.Errorf("crm: decode tags: %w", err)
		}
		all = append(all, tags...)
		if !hasMore || len(tags) == 0 {
			return all, nil
		}
		after = string(tags[len(tags)-1].ID)
	}
	c.logger.Warn("CRM tag listing truncated", zap.Int("pages", maxPages), zap.Int("tags", len(all)))
	return all, nil
}

// CreateTag defines a new global tag.
func (c *Client) CreateTag(ctx context.Context, name string) (*Tag, error) {
	raw, err := c.do(ctx, "create_tag", http.MethodPost, tagsPath, map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var tag Tag
	if err := decodeInto(raw, &tag); err != nil {
		return nil, err
	}
	if tag.Name == "" {
		tag.Name = name
	}
	return &tag, nil
}

// AddTagToContact links an existing tag to a contact.
func (c *Client) AddTagToContact(ctx context.Context, contactID, tagID ID) error {
	path := contactsPath + "/" + url.PathEscape(string(contactID)) + "/tags"
	_, err := c.do(ctx, "add_tag", http.MethodPost, path, map[string]ID{"tag_id": tagID})
	return err
}

// RemoveTagFromContact unlinks a tag from a contact.
func (c *Client) RemoveTagFromContact(ctx context.Context, contactID, tagID ID) error {
	path := contactsPath + "/" + url.PathEscape(string(contactID)) + "/tags/" + url.PathEscape(string(tagID))
	_, err := c.do(ctx, "remove_tag", http.MethodDelete, path, nil)
	return err
}
