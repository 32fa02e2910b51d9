package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Logger indexes system logs and provider call logs
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// RecordCall implements provider.CallRecorder. Failures are reported, never returned.
func (l *Logger) RecordCall(ctx context.Context, call provider.CallLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := l.IndexCall(ctx, call); err != nil {
		log.Printf("Failed to index %s call log for %s: %v", call.Kind, call.Provider, err)
	}
}

// IndexCall stores a provider call log in the index of its kind
func (l *Logger) IndexCall(ctx context.Context, call provider.CallLog) error {
	if !l.client.IsEnabled() {
		return nil
	}

	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}
	call.Error = SanitizeForLog(call.Error)

	return l.index(ctx, l.client.GetCallIndexName(call.Kind), call)
}

// LogSystemEvent implements logger.Sink
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, l.client.GetSystemIndexName(), entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

// SearchCalls searches the call logs of one provider
func (l *Logger) SearchCalls(ctx context.Context, kind, providerName string, query map[string]any) ([]provider.CallLog, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	filter := []map[string]any{
		{"term": map[string]any{"provider": providerName}},
	}
	if len(query) > 0 {
		filter = append(filter, query)
	}

	searchQuery := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filter},
		},
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": 100,
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source provider.CallLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := l.search(ctx, l.client.GetCallIndexName(kind), searchQuery, &searchResult); err != nil {
		return nil, err
	}

	calls := make([]provider.CallLog, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		calls[i] = hit.Source
	}
	return calls, nil
}

// GetReferenceCalls returns every call made for a payment id, order id or tracking number
func (l *Logger) GetReferenceCalls(ctx context.Context, kind, providerName, reference string) ([]provider.CallLog, error) {
	return l.SearchCalls(ctx, kind, providerName, map[string]any{
		"term": map[string]any{"reference": reference},
	})
}

// GetRecentErrorCalls returns failed calls of the last hours
func (l *Logger) GetRecentErrorCalls(ctx context.Context, kind, providerName string, hours int) ([]provider.CallLog, error) {
	return l.SearchCalls(ctx, kind, providerName, map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
				{"exists": map[string]any{"field": "error"}},
			},
		},
	})
}

// GetProviderStats aggregates call counts and latency for a provider
func (l *Logger) GetProviderStats(ctx context.Context, kind, providerName string, hours int) (map[string]any, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	aggQuery := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"provider": providerName}},
					{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
				},
			},
		},
		"aggs": map[string]any{
			"error_count": map[string]any{
				"filter": map[string]any{"exists": map[string]any{"field": "error"}},
			},
			"replayed_count": map[string]any{
				"filter": map[string]any{"term": map[string]any{"replayed": true}},
			},
			"avg_duration": map[string]any{
				"avg": map[string]any{"field": "duration_ms"},
			},
			"operations": map[string]any{
				"terms": map[string]any{"field": "operation", "size": 10},
			},
		},
		"size": 0,
	}

	var result map[string]any
	if err := l.search(ctx, l.client.GetCallIndexName(kind), aggQuery, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Logger) search(ctx context.Context, indexName string, query map[string]any, target any) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch search error: %s", res.String())
	}

	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode search results: %w", err)
	}
	return nil
}

var sensitivePatterns = func() []*regexp.Regexp {
	fields := []string{
		"merchant_key", "merchantKey", "merchant_salt", "merchantSalt", "paytr_token",
		"HashData", "Password", "password", "apiKey", "api_key", "storeKey", "token",
		"authorization",
	}
	var patterns []*regexp.Regexp
	for _, field := range fields {
		quoted := regexp.QuoteMeta(field)
		patterns = append(patterns,
			regexp.MustCompile(`"`+quoted+`"\s*:\s*"[^"]*"`),
			regexp.MustCompile(`<`+quoted+`>[^<]*</`+quoted+`>`),
			regexp.MustCompile(`\b`+quoted+`=[^&\s]+`),
		)
	}
	return patterns
}()

// SanitizeForLog masks credentials in JSON, XML and form encoded payloads
func SanitizeForLog(data string) string {
	result := data
	for _, re := range sensitivePatterns {
		result = re.ReplaceAllStringFunc(result, redact)
	}
	return result
}

func redact(match string) string {
	switch {
	case match[0] == '"':
		key := match[:strings.IndexByte(match, ':')]
		return key + `:"***REDACTED***"`
	case match[0] == '<':
		end := strings.IndexByte(match, '>')
		tag := match[1:end]
		return "<" + tag + ">***REDACTED***</" + tag + ">"
	default:
		key := match[:strings.IndexByte(match, '=')]
		return key + "=***REDACTED***"
	}
}
