package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxDialogues = "dialogue_lines"

const (
	highlightPre  = "<mark>"
	highlightPost = "</mark>"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *logrus.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server is logged and retried by the health loop.
func NewMeili(url, apiKey string, logger *logrus.Logger) *Meili {
	if logger == nil {
		logger = logrus.New()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.WithFields(logrus.Fields{"url": url, "error": err}).Warn("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDialogues,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.WithError(err).Debug("search: create index (may already exist)")
	}

	index := m.client.Index(idxDialogues)
	filterable := []interface{}{"documentId", "schemaVersion"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.WithError(err).Warn("search: update filterable attributes")
	}
	searchable := []string{"lines", "speakers", "nodeIds"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.WithError(err).Warn("search: update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns one result per matching document, pointing at the first
// highlighted line.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	sr := &meili.SearchRequest{
		IndexUID:              idxDialogues,
		Query:                 q.Text,
		Limit:                 int64(defaultLimit(q.Limit)),
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"lines", "speakers"},
		HighlightPreTag:       highlightPre,
		HighlightPostTag:      highlightPost,
		ShowRankingScore:      true,
	}
	if q.DocumentID != "" {
		sr.Filter = fmt.Sprintf("documentId = %q", q.DocumentID)
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{DocumentID: decodeString(hit, "documentId")}
	nodeIDs := decodeStrings(hit["nodeIds"])
	speakers := decodeStrings(hit["speakers"])
	lines := decodeStrings(hit["lines"])
	formatted := decodeFormattedStrings(hit, "lines")
	formattedSpeakers := decodeFormattedStrings(hit, "speakers")

	pick := -1
	for i := range nodeIDs {
		if i < len(formatted) && strings.Contains(formatted[i], highlightPre) {
			pick = i
			break
		}
		if i < len(formattedSpeakers) && strings.Contains(formattedSpeakers[i], highlightPre) && pick < 0 {
			pick = i
		}
	}
	if pick < 0 && len(nodeIDs) > 0 {
		pick = 0
	}
	if pick < 0 {
		return r
	}
	r.NodeID = nodeIDs[pick]
	if pick < len(speakers) {
		r.Speaker = speakers[pick]
	}
	if pick < len(formatted) {
		r.Snippet = formatted[pick]
	} else if pick < len(lines) {
		r.Snippet = lines[pick]
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func decodeFormattedStrings(hit meili.Hit, key string) []string {
	raw, ok := hit["_formatted"]
	if !ok {
		return nil
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return nil
	}
	return decodeStrings(formatted[key])
}

// IndexDialogue adds or replaces a document's record.
func (m *Meili) IndexDialogue(record DialogueRecord) error {
	_, err := m.client.Index(idxDialogues).AddDocuments([]DialogueRecord{record}, nil)
	return err
}

// IndexDialogues bulk-indexes records.
func (m *Meili) IndexDialogues(records []DialogueRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDialogues).AddDocuments(records, nil)
	return err
}
