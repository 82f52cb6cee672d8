package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config defines connection settings for the alert archive cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Client is a minimal Elasticsearch client covering document indexing and
// liveness probing. Requests rotate across the configured addresses.
type Client struct {
	addresses []string
	http      *http.Client
	username  string
	password  string
	useAuth   bool

	mu  sync.Mutex
	idx int
}

// NewClient validates the configured addresses and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch: at least one address is required")
	}

	addresses := make([]string, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		trimmed := strings.TrimSpace(addr)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
			trimmed = "http://" + trimmed
		}
		if _, err := url.Parse(trimmed); err != nil {
			return nil, fmt.Errorf("elasticsearch: invalid address %q: %w", addr, err)
		}
		addresses = append(addresses, trimmed)
	}
	if len(addresses) == 0 {
		return nil, errors.New("elasticsearch: no valid addresses provided")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		addresses: addresses,
		http:      &http.Client{Timeout: timeout},
		username:  cfg.Username,
		password:  cfg.Password,
		useAuth:   cfg.Username != "",
	}, nil
}

// IndexDocument indexes or updates one document by id via HTTP PUT.
func (c *Client) IndexDocument(ctx context.Context, index string, id string, body interface{}) error {
	if strings.TrimSpace(index) == "" {
		return errors.New("elasticsearch: index is required")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("elasticsearch: id is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elasticsearch: failed to marshal document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/_doc/%s", c.nextAddress(), strings.TrimPrefix(index, "/"), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("elasticsearch: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.useAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch: indexing failed with status %s", resp.Status)
	}
	return nil
}

// Ping checks cluster reachability for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nextAddress(), nil)
	if err != nil {
		return fmt.Errorf("elasticsearch: failed to create request: %w", err)
	}
	if c.useAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch: ping returned status %s", resp.Status)
	}
	return nil
}

// nextAddress rotates through the configured addresses.
func (c *Client) nextAddress() string {
	c.mu.Lock()
	addr := c.addresses[c.idx%len(c.addresses)]
	c.idx++
	c.mu.Unlock()
	return addr
}
