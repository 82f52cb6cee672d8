package engine

import (
	"context"
	"time"

	"realsync-server/pkg/elasticsearch"
	"realsync-server/pkg/metrics"
)

// ElasticsearchAlertWriter archives emitted alerts for the report layer.
type ElasticsearchAlertWriter struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchAlertWriter constructs an alert writer over the given
// index.
func NewElasticsearchAlertWriter(client *elasticsearch.Client, index string) *ElasticsearchAlertWriter {
	return &ElasticsearchAlertWriter{client: client, index: index}
}

// alertDocument is the indexed shape: the alert plus its session context.
type alertDocument struct {
	SessionID string    `json:"session_id"`
	IndexedAt time.Time `json:"indexed_at"`
	Alert
}

// Save indexes the alert under its own ID.
func (w *ElasticsearchAlertWriter) Save(ctx context.Context, sessionID string, alert *Alert) error {
	if alert == nil {
		return nil
	}
	doc := alertDocument{
		SessionID: sessionID,
		IndexedAt: time.Now().UTC(),
		Alert:     *alert,
	}
	if err := w.client.IndexDocument(ctx, w.index, alert.ID, doc); err != nil {
		metrics.RecordESIndex("error")
		return err
	}
	metrics.RecordESIndex("success")
	return nil
}
