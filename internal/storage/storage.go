package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// Upload timeout per attempt — generous for rendered videos
	uploadTimeout = 300 * time.Second

	// Download timeout
	downloadTimeout = 120 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// Storage is a Supabase-style object store client: byte-addressable
// read/write keyed by path, plus public and signed URL generation.
type Storage struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
}

func New(url, serviceKey, bucket string) *Storage {
	return &Storage{
		url:        url,
		serviceKey: serviceKey,
		Bucket:     bucket,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *Storage) objectURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, path)
}

// withRetries runs attempt with exponential backoff and jitter. attempt
// returns (retryable, err); a non-retryable error aborts immediately.
func (s *Storage) withRetries(ctx context.Context, label string, attempt func(ctx context.Context) (bool, error)) error {
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			delay := retryDelay(try)
			log.Printf("[Storage] %s retry %d/%d (waiting %v)...", label, try, maxRetries, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", label, ctx.Err())
			case <-time.After(delay):
			}
		}

		retryable, err := attempt(ctx)
		if err == nil {
			if try > 0 {
				log.Printf("[Storage] %s succeeded on attempt %d", label, try+1)
			}
			return nil
		}

		lastErr = err
		if !retryable {
			return lastErr
		}
		log.Printf("[Storage] %s attempt %d failed (retryable): %v", label, try+1, err)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, maxRetries+1, lastErr)
}

// Upload writes data to the bucket. Uses PUT with x-upsert so re-publishing
// a path is idempotent.
func (s *Storage) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	return s.withRetries(ctx, "upload "+path, func(ctx context.Context) (bool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPut, s.objectURL(path), bytes.NewReader(data))
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Length", fmt.Sprintf("%d", len(data)))
		req.Header.Set("x-upsert", "true")

		resp, err := s.client.Do(req)
		if err != nil {
			return isRetryableError(err), fmt.Errorf("failed to upload: %w", err)
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return false, nil
		}

		return isRetryableStatus(resp.StatusCode),
			fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	})
}

// UploadFile uploads a file from a local path.
func (s *Storage) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", localPath, err)
	}

	return s.Upload(ctx, storagePath, data, contentType)
}

// Download fetches an object's bytes.
func (s *Storage) Download(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.withRetries(ctx, "download "+path, func(ctx context.Context) (bool, error) {
		var retryable bool
		var err error
		data, retryable, err = s.downloadOnce(ctx, path, func(body io.Reader) ([]byte, error) {
			return io.ReadAll(body)
		})
		return retryable, err
	})
	return data, err
}

// DownloadToFile streams an object to a local path, avoiding a full
// in-memory copy of large media files.
func (s *Storage) DownloadToFile(ctx context.Context, storagePath, localPath string) error {
	return s.withRetries(ctx, "download "+storagePath, func(ctx context.Context) (bool, error) {
		_, retryable, err := s.downloadOnce(ctx, storagePath, func(body io.Reader) ([]byte, error) {
			f, err := os.Create(localPath)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			_, err = io.Copy(f, body)
			return nil, err
		})
		return retryable, err
	})
}

func (s *Storage) downloadOnce(ctx context.Context, path string, consume func(io.Reader) ([]byte, error)) ([]byte, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, s.objectURL(path), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, isRetryableError(err), fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		data, err := consume(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read download body: %w", err)
		}
		return data, false, nil
	}

	body, _ := io.ReadAll(resp.Body)
	return nil, isRetryableStatus(resp.StatusCode),
		fmt.Errorf("download failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
}

// GetPublicURL returns the public URL for a file.
func (s *Storage) GetPublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, path)
}

// GetSignedURL creates a signed URL for temporary access.
func (s *Storage) GetSignedURL(ctx context.Context, path string, expiresIn int) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.url, s.Bucket, path)

	body := fmt.Sprintf(`{"expiresIn": %d}`, expiresIn)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get signed URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse signed URL response: %w", err)
	}

	return s.url + result.SignedURL, nil
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0-25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
