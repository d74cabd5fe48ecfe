package rfq

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rfqgateway/internal/model"
	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/circuitbreaker"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/metrics"
	"rfqgateway/pkg/util"
)

const (
	maxSummaryItems = 10
	maxSpecRows     = 10
)

// Upstream is the slice of the Supabase client the RFQ pipeline needs.
type Upstream interface {
	GetWithUser(ctx context.Context, path, bearer string) (*supabase.Response, error)
	GetService(ctx context.Context, path string) (json.RawMessage, error)
}

// ItemsPreviewData holds the per-RFQ maps built from one items+specs batch.
type ItemsPreviewData struct {
	Preview map[string][]string
	Summary map[string][]model.ItemSummary
	Counts  map[string]int
}

func emptyItemsPreviewData() ItemsPreviewData {
	return ItemsPreviewData{
		Preview: map[string][]string{},
		Summary: map[string][]model.ItemSummary{},
		Counts:  map[string]int{},
	}
}

// Enricher fills quotation counts and item previews onto card rows.
type Enricher struct {
	upstream Upstream
	quotesCB *circuitbreaker.CircuitBreaker // 熔断器
	itemsCB  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewEnricher(upstream Upstream, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Enricher{
		upstream: upstream,
		quotesCB: circuitbreaker.NewCircuitBreaker("rfq_quotations", cbConfig),
		itemsCB:  circuitbreaker.NewCircuitBreaker("rfq_items", cbConfig),
		logger:   logger,
	}
}

// FetchQuotationCounts counts quotation rows per RFQ id. Any failure yields an empty map.
func (e *Enricher) FetchQuotationCounts(ctx context.Context, ids []string) map[string]int {
	counts := map[string]int{}
	if len(ids) == 0 {
		return counts
	}
	wanted := toSet(ids)

	err := e.quotesCB.ExecuteCtx(ctx, func() error {
		body, err := e.upstream.GetService(ctx, "quotations?select=rfq_id&rfq_id=in.("+inList(ids)+")")
		if err != nil {
			return err
		}
		for _, q := range supabase.DecodeList(body) {
			id := str(q["rfq_id"])
			if _, ok := wanted[id]; ok {
				counts[id]++
			}
		}
		return nil
	})
	if err != nil {
		e.fallback(ctx, "quotations", err)
		return map[string]int{}
	}
	return counts
}

// FetchItemsPreviewData loads the items of every RFQ (oldest first) plus their specs in
// two batch queries. categories supplies the parent RFQ category for items without one.
// Any failure yields empty maps.
func (e *Enricher) FetchItemsPreviewData(ctx context.Context, ids []string, categories map[string]string) ItemsPreviewData {
	if len(ids) == 0 {
		return emptyItemsPreviewData()
	}
	wanted := toSet(ids)

	var data ItemsPreviewData
	err := e.itemsCB.ExecuteCtx(ctx, func() error {
		body, err := e.upstream.GetService(ctx,
			"rfq_items?select=id,rfq_id,name,quantity,category_path,created_at&rfq_id=in.("+inList(ids)+")&order=created_at.asc")
		if err != nil {
			return err
		}
		items := supabase.DecodeList(body)

		specsByItem := map[string][]map[string]any{}
		if itemIDs := collectItemIDs(items); len(itemIDs) > 0 {
			specBody, err := e.upstream.GetService(ctx,
				"rfq_item_specs?select=item_id,key_norm,label,value,unit&item_id=in.("+inList(itemIDs)+")")
			if err != nil {
				return err
			}
			for _, s := range supabase.DecodeList(specBody) {
				itemID := str(s["item_id"])
				specsByItem[itemID] = append(specsByItem[itemID], s)
			}
		}

		data = buildItemsPreview(items, specsByItem, wanted, categories)
		return nil
	})
	if err != nil {
		e.fallback(ctx, "items", err)
		return emptyItemsPreviewData()
	}
	return data
}

func buildItemsPreview(items []map[string]any, specsByItem map[string][]map[string]any, wanted map[string]struct{}, categories map[string]string) ItemsPreviewData {
	data := emptyItemsPreviewData()
	seenNames := map[string]map[string]struct{}{}

	for _, item := range items {
		rfqID := str(item["rfq_id"])
		if _, ok := wanted[rfqID]; !ok {
			continue
		}
		data.Counts[rfqID]++

		name := strings.TrimSpace(str(item["name"]))
		if name != "" {
			if seenNames[rfqID] == nil {
				seenNames[rfqID] = map[string]struct{}{}
			}
			if _, dup := seenNames[rfqID][name]; !dup {
				seenNames[rfqID][name] = struct{}{}
				data.Preview[rfqID] = append(data.Preview[rfqID], name)
			}
		}

		if len(data.Summary[rfqID]) >= maxSummaryItems {
			continue
		}
		category := str(pick(item, "category_path", "categoryPath"))
		if category == "" {
			category = categories[rfqID]
		}
		data.Summary[rfqID] = append(data.Summary[rfqID], model.ItemSummary{
			Name:           name,
			Quantity:       floatPtr(item["quantity"]),
			CategoryPath:   category,
			Specifications: formatSpecs(specsByItem[str(item["id"])]),
		})
	}
	return data
}

// formatSpecs renders up to maxSpecRows spec rows as label -> "value unit".
func formatSpecs(specs []map[string]any) map[string]string {
	out := map[string]string{}
	if len(specs) > maxSpecRows {
		specs = specs[:maxSpecRows]
	}
	for _, s := range specs {
		key := strings.TrimSpace(str(s["label"]))
		if key == "" {
			key = strings.TrimSpace(str(s["key_norm"]))
		}
		if key == "" || s["value"] == nil {
			continue
		}
		value := str(s["value"])
		if unit := strings.TrimSpace(str(s["unit"])); unit != "" {
			value += " " + unit
		}
		out[key] = value
	}
	return out
}

// EnrichRows fills the fields the view left empty. At most two batch fetches run in
// parallel. The input rows are not modified; enriched copies are returned in order.
func (e *Enricher) EnrichRows(ctx context.Context, rows []*model.CardRow) []*model.CardRow {
	if len(rows) == 0 {
		return []*model.CardRow{}
	}

	ids := make([]string, 0, len(rows))
	seen := map[string]struct{}{}
	categories := map[string]string{}
	var needsQuotes, needsPreview, needsSummary bool
	for _, r := range rows {
		if r == nil {
			continue
		}
		if r.QuotationsCount == nil {
			needsQuotes = true
		}
		if len(r.ItemsPreview) == 0 {
			needsPreview = true
		}
		if len(r.ItemsSummary) == 0 {
			needsSummary = true
		}
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; !dup {
			seen[r.ID] = struct{}{}
			ids = append(ids, r.ID)
			categories[r.ID] = firstNonEmpty(r.FirstCategoryPath, r.CategoryPath)
		}
	}

	quotes := map[string]int{}
	items := emptyItemsPreviewData()

	g, gctx := errgroup.WithContext(ctx)
	if needsQuotes {
		g.Go(func() error {
			quotes = e.FetchQuotationCounts(gctx, ids)
			return nil
		})
	}
	if needsPreview || needsSummary {
		g.Go(func() error {
			items = e.FetchItemsPreviewData(gctx, ids, categories)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*model.CardRow, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, mergeRow(r, quotes, items))
	}
	return out
}

func mergeRow(r *model.CardRow, quotes map[string]int, items ItemsPreviewData) *model.CardRow {
	row := *r

	if row.QuotationsCount == nil {
		n := quotes[row.ID]
		row.QuotationsCount = &n
	}
	if len(row.ItemsPreview) == 0 {
		if p, ok := items.Preview[row.ID]; ok {
			row.ItemsPreview = p
		}
	}
	if len(row.ItemsSummary) == 0 {
		if s, ok := items.Summary[row.ID]; ok {
			row.ItemsSummary = s
		}
	}

	var total *int
	switch {
	case hasKey(items.Counts, row.ID):
		n := items.Counts[row.ID]
		total = &n
	case row.ItemsCount != nil:
		total = row.ItemsCount
	case row.ItemsTotalCount != nil:
		total = row.ItemsTotalCount
	}

	row.ItemsTotalCount = nil
	row.ItemsOverflowCount = nil
	if total != nil {
		t := *total
		row.ItemsTotalCount = &t
		if row.ItemsCount == nil {
			row.ItemsCount = &t
		}
		if overflow := t - len(row.ItemsSummary); overflow > 0 {
			row.ItemsOverflowCount = &overflow
		}
	}
	return &row
}

func (e *Enricher) fallback(ctx context.Context, fetch string, err error) {
	reason := util.ClassifyError(err)
	metrics.IncrementEnrichmentFallback(fetch, reason)
	logger.WithTrace(ctx, e.logger).Warn("Enrichment fetch failed, using empty result",
		zap.String("fetch", fetch),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func collectItemIDs(items []map[string]any) []string {
	ids := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, it := range items {
		id := str(it["id"])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func inList(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return strings.Join(escaped, ",")
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}
