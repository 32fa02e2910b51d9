package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	indexPrefix     = "storegate"
	systemLogsIndex = indexPrefix + "-system-logs"
)

// callKinds have one call-log index each
var callKinds = []string{"payment", "shipping", "notification"}

// Client wraps the OpenSearch client
type Client struct {
	client *opensearch.Client
	config *config.AppConfig
}

// NewClient creates a new OpenSearch client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client: client,
		config: cfg,
	}

	if cfg.EnableLogging {
		if err := osClient.setupIndices(context.Background()); err != nil {
			log.Printf("Warning: Failed to setup OpenSearch indices: %v", err)
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// setupIndices creates the system log index and one call index per kind
func (c *Client) setupIndices(ctx context.Context) error {
	indices := []string{systemLogsIndex}
	for _, kind := range callKinds {
		indices = append(indices, c.GetCallIndexName(kind))
	}

	var failed []string
	for _, indexName := range indices {
		exists, err := c.indexExists(ctx, indexName)
		if err != nil {
			failed = append(failed, indexName)
			continue
		}
		if exists {
			continue
		}

		mapping := callLogMapping
		if indexName == systemLogsIndex {
			mapping = systemLogMapping
		}
		if err := c.createIndex(ctx, indexName, mapping); err != nil {
			failed = append(failed, indexName)
			continue
		}
		log.Printf("Created OpenSearch index: %s", indexName)
	}

	if len(failed) > 0 {
		return fmt.Errorf("could not set up indices: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (c *Client) indexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) createIndex(ctx context.Context, indexName, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}

// GetCallIndexName returns the call-log index of a provider kind
func (c *Client) GetCallIndexName(kind string) string {
	if kind == "" {
		kind = "unknown"
	}
	return indexPrefix + "-" + strings.ToLower(kind) + "-calls"
}

// GetSystemIndexName returns the system log index
func (c *Client) GetSystemIndexName() string {
	return systemLogsIndex
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.config.EnableLogging
}

// Ping reports whether the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping failed: %s", res.Status())
	}
	return nil
}

const callLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"kind": {"type": "keyword"},
			"provider": {"type": "keyword"},
			"operation": {"type": "keyword"},
			"reference": {"type": "keyword"},
			"status": {"type": "keyword"},
			"amount": {"type": "double"},
			"currency": {"type": "keyword"},
			"duration_ms": {"type": "long"},
			"replayed": {"type": "boolean"},
			"error": {"type": "text"},
			"fields": {"type": "object", "enabled": false}
		}
	},
	"settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`

const systemLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"level": {"type": "keyword"},
			"message": {"type": "text"},
			"component": {"type": "keyword"},
			"provider": {"type": "keyword"},
			"request_id": {"type": "keyword"},
			"service": {"type": "keyword"},
			"environment": {"type": "keyword"},
			"fields": {"type": "object", "enabled": false}
		}
	},
	"settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`
