package api

// Client for the 3D printing platform backend.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Service is one orderable service from the catalog.
type Service struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FileInfo describes an uploaded file inside an order payload.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Token    string `json:"token"`
}

// UploadResult is the backend's receipt for an uploaded file.
type UploadResult struct {
	Token     string `json:"token"`
	SizeBytes int64  `json:"size_bytes"`
}

// OrderRequest mirrors the collected order session.
type OrderRequest struct {
	CustomerName    string         `json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone,omitempty"`
	ServiceID       int64          `json:"service_id"`
	Source          string         `json:"source"`
	Specifications  map[string]any `json:"specifications"`
	Files           []FileInfo     `json:"files"`
	DeliveryNeeded  bool           `json:"delivery_needed"`
	DeliveryDetails string         `json:"delivery_details,omitempty"`
}

// OrderCreated is the backend's answer to a successful order creation.
type OrderCreated struct {
	ID int64 `json:"id"`
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// ListServices fetches the active service catalog. Transient failures are
// retried with exponential backoff.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var services []Service

	operation := func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			fmt.Sprintf("%s/api/services?active=true", c.baseURL),
			nil,
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return services, nil
}

// UploadFile pushes the file bytes to the backend as multipart form data.
// Not retried: the backend does not deduplicate uploads.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename string) (UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/api/files", c.baseURL),
		&body,
	)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return UploadResult{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("file uploaded",
		zap.String("filename", filename),
		zap.Int("size", len(data)),
		zap.Duration("took", time.Since(start)))

	return result, nil
}

// CreateOrder submits the collected order. The backend answers either with the
// bare order object or with a {"success": true, "data": {...}} envelope.
func (c *Client) CreateOrder(ctx context.Context, order OrderRequest) (OrderCreated, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return OrderCreated{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/api/orders", c.baseURL),
		bytes.NewReader(payload),
	)
	if err != nil {
		return OrderCreated{}, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OrderCreated{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return OrderCreated{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return OrderCreated{}, fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Success bool         `json:"success"`
		Data    OrderCreated `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Success {
		return envelope.Data, nil
	}

	var created OrderCreated
	if err := json.Unmarshal(raw, &created); err != nil {
		return OrderCreated{}, fmt.Errorf("decode response: %w", err)
	}
	return created, nil
}
