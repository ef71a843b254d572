package crm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ID is a CRM-assigned identifier. The API emits numeric ids; they are kept as strings
// so callers never depend on the wire representation.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("crm: invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric-looking ids as numbers, which is what the API expects for tag_id.
func (id ID) MarshalJSON() ([]byte, error) {
	numeric := id != "" && strings.Trim(string(id), "0123456789") == ""
	if numeric && (id == "0" || id[0] != '0') {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Tag is a global CRM label.
type Tag struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Field is a custom contact field as returned by the API.
type Field struct {
	Slug  string  `json:"slug"`
	Value *string `json:"value"`
}

// Contact is a CRM contact record.
type Contact struct {
	ID        ID      `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name,omitempty"`
	LastName  string  `json:"last_name,omitempty"`
	Tags      []Tag   `json:"tags,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
}

// Names returns the contact's first and last name, falling back to the
// first_name / surname custom fields when the top-level properties are empty.
func (c *Contact) Names() (first, last string) {
	first, last = c.FirstName, c.LastName
	for _, f := range c.Fields {
		if f.Value == nil {
			continue
		}
		switch f.Slug {
		case "first_name":
			if first == "" {
				first = *f.Value
			}
		case "surname", "last_name":
			if last == "" {
				last = *f.Value
			}
		}
	}
	return strings.TrimSpace(first), strings.TrimSpace(last)
}

// TagNames returns the names of the tags linked to the contact.
func (c *Contact) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		names = append(names, t.Name)
	}
	return names
}

// CreateContactRequest is the body of POST /api/contacts.
type CreateContactRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UpdateContactRequest is the merge-patch body of PATCH /api/contacts/{id}.
type UpdateContactRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// ErrNotFound is matched by APIError values carrying a 404 and by lookups with no result.
var ErrNotFound = errors.New("crm: not found")

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("crm: temporarily unavailable")

// APIError is a non-2xx answer from the CRM.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("crm: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("crm: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// listPage is the collection envelope. Current API versions use "items";
// older ones used "data".
type listPage[T any] struct {
	Items   []T  `json:"items"`
	Data    []T  `json:"data"`
	HasMore bool `json:"hasMore"`
}

func decodeList[T any](body []byte) ([]T, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, nil
	}
	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, false, err
		}
		return items, false, nil
	}
	var page listPage[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false, err
	}
	if page.Items != nil {
		return page.Items, page.HasMore, nil
	}
	return page.Data, page.HasMore, nil
}

// errorBody covers the error shapes the API is known to return.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Title   string `json:"title"`
}

func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, m := range []string{eb.Message, eb.Detail, eb.Error, eb.Title} {
			if m != "" {
				return m
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
