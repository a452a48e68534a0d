// Package appwrite implements repository.DocumentStore on the Appwrite
// Databases service through the official Go SDK.
//
// Each logical table maps to one Appwrite collection inside one database.
// Requests authenticate with a server API key scoped to the project.
//
// The SDK calls take no context. A cancelled context is honoured before a
// call starts; once started, a call is bounded by the HTTP client timeout.
package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/appwrite/sdk-for-go/appwrite"
	"github.com/appwrite/sdk-for-go/client"
	"github.com/appwrite/sdk-for-go/databases"
	"github.com/appwrite/sdk-for-go/models"
	"github.com/appwrite/sdk-for-go/query"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/repository"
)

var _ repository.DocumentStore = (*Client)(nil)

// pageSize is the limit sent on each list request.
const pageSize = 100

// Config holds the connection settings.
type Config struct {
	Endpoint   string            // e.g. https://cloud.appwrite.io/v1
	ProjectID  string            // X-Appwrite-Project
	APIKey     string            // X-Appwrite-Key
	DatabaseID string            // database holding both collections
	Tables     map[string]string // logical table → Appwrite collection id
	Timeout    time.Duration
}

// Client is a DocumentStore backed by Appwrite.
type Client struct {
	cfg Config
	db  *databases.Databases
}

// New validates cfg and builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, errors.New("appwrite: endpoint is required")
	case cfg.ProjectID == "":
		return nil, errors.New("appwrite: project id is required")
	case cfg.DatabaseID == "":
		return nil, errors.New("appwrite: database id is required")
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []client.ClientOption{
		sdk.WithEndpoint(cfg.Endpoint),
		sdk.WithProject(cfg.ProjectID),
		sdk.WithTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, sdk.WithKey(cfg.APIKey))
	}
	if httpClient != nil {
		opts = append(opts, withHTTPClient(httpClient))
	}

	return &Client{cfg: cfg, db: sdk.NewDatabases(sdk.NewClient(opts...))}, nil
}

// withHTTPClient replaces the SDK's default client. It must come after
// WithTimeout, which installs a fresh one.
func withHTTPClient(hc *http.Client) client.ClientOption {
	return func(c *client.Client) error {
		c.Client = hc
		return nil
	}
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

// List pages through the whole collection. No filter queries are sent.
func (c *Client) List(ctx context.Context, table string) ([]repository.Document, error) {
	docs := make([]repository.Document, 0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, c.translate(err, "listing", table, "")
		}

		list, err := c.db.ListDocuments(c.cfg.DatabaseID, c.collectionID(table),
			c.db.WithListDocumentsQueries([]string{
				query.Limit(pageSize),
				query.Offset(len(docs)),
			}))
		if err != nil {
			return nil, c.translate(err, "listing", table, "")
		}

		var page struct {
			Total     int              `json:"total"`
			Documents []map[string]any `json:"documents"`
		}
		if err := list.Decode(&page); err != nil {
			return nil, apperror.Unavailable("appwrite: listing "+table, err)
		}

		for _, raw := range page.Documents {
			doc, err := toDocument(raw)
			if err != nil {
				return nil, apperror.Unavailable("appwrite: listing "+table, err)
			}
			docs = append(docs, *doc)
		}

		if len(page.Documents) == 0 || len(docs) >= page.Total {
			return docs, nil
		}
	}
}

// Get fetches one document.
func (c *Client) Get(ctx context.Context, table, id string) (*repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.translate(err, "getting", table, id)
	}
	doc, err := c.db.GetDocument(c.cfg.DatabaseID, c.collectionID(table), id)
	if err != nil {
		return nil, c.translate(err, "getting", table, id)
	}
	return c.decode(doc, "getting", table)
}

// Create stores a new document with a caller-chosen id.
func (c *Client) Create(ctx context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.translate(err, "creating", table, id)
	}
	doc, err := c.db.CreateDocument(c.cfg.DatabaseID, c.collectionID(table), id, fields)
	if err != nil {
		return nil, c.translate(err, "creating", table, id)
	}
	return c.decode(doc, "creating", table)
}

// Update patches the given attributes.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.translate(err, "updating", table, id)
	}
	doc, err := c.db.UpdateDocument(c.cfg.DatabaseID, c.collectionID(table), id,
		c.db.WithUpdateDocumentData(fields))
	if err != nil {
		return nil, c.translate(err, "updating", table, id)
	}
	return c.decode(doc, "updating", table)
}

// Increment uses Appwrite's server-side attribute increment.
func (c *Client) Increment(ctx context.Context, table, id, field string, by int) (*repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.translate(err, "incrementing", table, id)
	}
	doc, err := c.db.IncrementDocumentAttribute(c.cfg.DatabaseID, c.collectionID(table), id, field,
		c.db.WithIncrementDocumentAttributeValue(float64(by)))
	if err != nil {
		return nil, c.translate(err, "incrementing", table, id)
	}
	return c.decode(doc, "incrementing", table)
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return c.translate(err, "deleting", table, id)
	}
	if _, err := c.db.DeleteDocument(c.cfg.DatabaseID, c.collectionID(table), id); err != nil {
		return c.translate(err, "deleting", table, id)
	}
	return nil
}

func (c *Client) collectionID(table string) string {
	if id, ok := c.cfg.Tables[table]; ok && id != "" {
		return id
	}
	return table
}

// apiError carries the status and error type of an Appwrite error response.
// The SDK's error only reports the message.
type apiError struct {
	Status  int
	Type    string
	Message string
}

func (e *apiError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("appwrite: %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("appwrite: %d: %s", e.Status, e.Message)
}

func fromSDK(err *client.AppwriteError) *apiError {
	e := &apiError{Status: err.GetStatusCode(), Message: err.GetMessage()}
	var body struct {
		Type string `json:"type"`
	}
	if json.Unmarshal([]byte(err.GetResponse()), &body) == nil {
		e.Type = body.Type
	}
	return e
}

// translate maps a call failure to an apperror kind.
func (c *Client) translate(err error, verb, table, id string) error {
	resource := strings.TrimSuffix(table, "s")

	var sdkErr *client.AppwriteError
	if errors.As(err, &sdkErr) {
		apiErr := fromSDK(sdkErr)
		switch apiErr.Status {
		case http.StatusNotFound:
			if id != "" {
				return apperror.NotFound(resource, id)
			}
		case http.StatusConflict:
			return apperror.Conflict(resource, id)
		case http.StatusBadRequest:
			return apperror.ValidationFailed("", apiErr.Message)
		}
		err = apiErr
	}

	op := fmt.Sprintf("appwrite: %s %s", verb, table)
	if id != "" {
		op += " " + id
	}
	return apperror.Unavailable(op, err)
}

func (c *Client) decode(doc *models.Document, verb, table string) (*repository.Document, error) {
	var raw map[string]any
	if err := doc.Decode(&raw); err != nil {
		return nil, apperror.Unavailable(fmt.Sprintf("appwrite: %s %s", verb, table), err)
	}
	out, err := toDocument(raw)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Sprintf("appwrite: %s %s", verb, table), err)
	}
	return out, nil
}

// toDocument splits Appwrite's "$"-prefixed system attributes from the
// caller's fields.
func toDocument(raw map[string]any) (*repository.Document, error) {
	doc := &repository.Document{Fields: make(map[string]any, len(raw))}

	for k, v := range raw {
		switch k {
		case "$id":
			doc.ID, _ = v.(string)
		case "$createdAt", "$updatedAt":
			s, _ := v.(string)
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("parsing %s %q: %w", k, s, err)
			}
			if k == "$createdAt" {
				doc.CreatedAt = ts
			} else {
				doc.UpdatedAt = ts
			}
		default:
			if !strings.HasPrefix(k, "$") {
				doc.Fields[k] = v
			}
		}
	}

	if doc.ID == "" {
		return nil, errors.New("document without $id")
	}
	return doc, nil
}
