package rfq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"rfqgateway/internal/model"
	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/logger"
)

const DefaultCardView = "v_rfqs_card"

// ListError is the failure half of ListResult. Upstream rejections carry Status and
// Details; unexpected failures carry Message only.
type ListError struct {
	Status  int
	Details json.RawMessage
	Message string
}

// ListResult is either Rows or Error, never both.
type ListResult struct {
	Rows  []*model.Card
	Error *ListError
}

type Service struct {
	upstream Upstream
	enricher *Enricher
	view     string
	logger   *zap.Logger
}

func NewService(upstream Upstream, enricher *Enricher, view string, logger *zap.Logger) *Service {
	if view == "" {
		view = DefaultCardView
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		upstream: upstream,
		enricher: enricher,
		view:     view,
		logger:   logger,
	}
}

// FetchSellerRfqList reads the card view with the caller's bearer and query string,
// enriches and maps the rows. It never panics and never returns an error.
func (s *Service) FetchSellerRfqList(ctx context.Context, bearer, query string) ListResult {
	return s.fetch(ctx, "seller", bearer, query)
}

func (s *Service) FetchBuyerRfqList(ctx context.Context, bearer, query string) ListResult {
	return s.fetch(ctx, "buyer", bearer, query)
}

// FetchBuyerRfq loads a single card by id. An empty Rows means not found.
func (s *Service) FetchBuyerRfq(ctx context.Context, bearer, id string) ListResult {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	q.Set("limit", "1")
	return s.fetch(ctx, "buyer_detail", bearer, q.Encode())
}

func (s *Service) fetch(ctx context.Context, scope, bearer, query string) (result ListResult) {
	log := logger.WithTrace(ctx, s.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("RFQ list pipeline panicked",
				zap.String("scope", scope),
				zap.Any("panic", r),
			)
			result = ListResult{Error: &ListError{Message: fmt.Sprint(r)}}
		}
	}()

	path := s.view
	if query != "" {
		path += "?" + query
	}

	resp, err := s.upstream.GetWithUser(ctx, path, bearer)
	if err != nil {
		log.Error("RFQ list request failed", zap.String("scope", scope), zap.Error(err))
		return ListResult{Error: &ListError{Message: err.Error()}}
	}
	if !resp.OK() {
		return ListResult{Error: &ListError{Status: resp.Status, Details: resp.Body}}
	}

	rows := ParseRows(supabase.DecodeList(resp.Body))
	enriched := s.enricher.EnrichRows(ctx, rows)
	return ListResult{Rows: MapCards(enriched)}
}
