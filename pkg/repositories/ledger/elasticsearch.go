package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/fadedpez/caminata/pkg/entities"
)

// ArchiveConfig holds configuration options for the Elasticsearch archiver
type ArchiveConfig struct {
	URL             string
	Username        string
	Password        string
	IndexPrefix     string
	RetentionPeriod time.Duration // How long to keep archived entries in Elasticsearch
	BatchSize       int           // Batch size for bulk indexing
	MinAge          time.Duration // How old an entry must be before it is archived
}

// DefaultArchiveConfig returns a default configuration for the archiver
func DefaultArchiveConfig() *ArchiveConfig {
	return &ArchiveConfig{
		URL:             "http://localhost:9200",
		IndexPrefix:     "caminata",
		RetentionPeriod: 90 * 24 * time.Hour,
		BatchSize:       500,
		MinAge:          24 * time.Hour,
	}
}

// ESLedgerEntry represents a ledger entry document in Elasticsearch
type ESLedgerEntry struct {
	EntryID         int64     `json:"entry_id"`
	AccountID       string    `json:"account_id"`
	Kind            string    `json:"kind"`
	Delta           int64     `json:"delta"`
	Type            string    `json:"type"`
	Reason          string    `json:"reason,omitempty"`
	BalanceAfter    int64     `json:"balance_after"`
	ClientRequestID string    `json:"client_request_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ElasticsearchArchiver copies aged ledger entries into dated indices for
// analytics and prunes indices past the retention period. The primary
// repository stays authoritative; the archive is read-only reporting data.
type ElasticsearchArchiver struct {
	source Repository
	client *elasticsearch.Client
	config *ArchiveConfig
	lastID int64 // Highest entry ID already archived
}

// NewElasticsearchArchiver creates a new archiver over the given source
// repository
func NewElasticsearchArchiver(source Repository, config *ArchiveConfig) (*ElasticsearchArchiver, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{config.URL},
	}
	if config.Username != "" {
		cfg.Username = config.Username
		cfg.Password = config.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating elasticsearch client: %w", err)
	}

	return &ElasticsearchArchiver{
		source: source,
		client: client,
		config: config,
	}, nil
}

// ArchiveNewEntries bulk-indexes entries old enough to archive that have
// not been archived yet. Entries go into monthly indices named
// <prefix>-entries-YYYY.MM after their creation time.
func (a *ElasticsearchArchiver) ArchiveNewEntries(ctx context.Context) error {
	cutoff := time.Now().Add(-a.config.MinAge)

	for {
		entries, err := a.source.GetEntriesAfter(ctx, a.lastID, cutoff, a.config.BatchSize)
		if err != nil {
			return fmt.Errorf("error reading entries to archive: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		if err := a.bulkIndex(ctx, entries); err != nil {
			return err
		}

		a.lastID = entries[len(entries)-1].ID
		log.Printf("[ARCHIVE] Indexed %d ledger entries through id %d", len(entries), a.lastID)

		if len(entries) < a.config.BatchSize {
			return nil
		}
	}
}

// PruneOldIndices deletes monthly indices whose entire month falls outside
// the retention period
func (a *ElasticsearchArchiver) PruneOldIndices(ctx context.Context) error {
	horizon := time.Now().Add(-a.config.RetentionPeriod)

	// Walk back a year beyond the horizon; anything older was pruned on a
	// previous pass.
	var stale []string
	month := time.Date(horizon.Year(), horizon.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	for i := 0; i < 12; i++ {
		stale = append(stale, a.indexFor(month))
		month = month.AddDate(0, -1, 0)
	}

	req := esapi.IndicesDeleteRequest{
		Index:             stale,
		IgnoreUnavailable: esapi.BoolPtr(true),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("error deleting old indices: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error deleting old indices: %s", string(body))
	}

	log.Printf("[ARCHIVE] Pruned indices older than %s", horizon.Format("2006-01"))
	return nil
}

// bulkIndex indexes one batch of entries, grouped into their monthly indices
func (a *ElasticsearchArchiver) bulkIndex(ctx context.Context, entries []*entities.LedgerEntry) error {
	var buf bytes.Buffer

	for _, entry := range entries {
		doc := ESLedgerEntry{
			EntryID:         entry.ID,
			AccountID:       entry.AccountID,
			Kind:            string(entry.Kind),
			Delta:           entry.Delta,
			Type:            string(entry.Type),
			Reason:          entry.Reason,
			BalanceAfter:    entry.BalanceAfter,
			ClientRequestID: entry.ClientRequestID,
			CreatedAt:       entry.CreatedAt,
		}

		// Entry IDs are unique, so re-archiving after a restart overwrites
		// instead of duplicating.
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":"%d"}}`, a.indexFor(entry.CreatedAt), entry.ID)
		buf.WriteString(meta)
		buf.WriteByte('\n')

		encoded, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error encoding entry %d: %w", entry.ID, err)
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("error executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk indexing failed: %s", string(body))
	}

	return nil
}

// indexFor returns the monthly index name for a timestamp
func (a *ElasticsearchArchiver) indexFor(t time.Time) string {
	return fmt.Sprintf("%s-entries-%s", a.config.IndexPrefix, t.UTC().Format("2006.01"))
}
