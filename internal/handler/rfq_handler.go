package handler

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rfqgateway/internal/service/rfq"
	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	hydrateRPC      = "rfq_hydrate_seller"
)

// cardColumns is the fixed projection requested from the card view.
var cardColumns = strings.Join([]string{
	"id", "public_id", "seller_rfq_id", "title", "status", "posted_at",
	"first_category_path", "category_path", "buyer_company_id",
	"quotations_count", "items_count", "items_preview", "items_summary",
	"city", "state", "country",
}, ",")

// RFQLister is implemented by rfq.Service.
type RFQLister interface {
	FetchSellerRfqList(ctx context.Context, bearer, query string) rfq.ListResult
	FetchBuyerRfqList(ctx context.Context, bearer, query string) rfq.ListResult
	FetchBuyerRfq(ctx context.Context, bearer, id string) rfq.ListResult
}

type RPCCaller interface {
	RPCWithUser(ctx context.Context, fn string, params any, bearer string) (*supabase.Response, error)
}

type RFQHandler struct {
	lister RFQLister
	rpc    RPCCaller
	logger *zap.Logger
}

func NewRFQHandler(lister RFQLister, rpc RPCCaller, logger *zap.Logger) *RFQHandler {
	return &RFQHandler{lister: lister, rpc: rpc, logger: logger}
}

// page is capped so (page-1)*pageSize cannot overflow
const maxPage = math.MaxInt / maxPageSize

// ParsePagination reads page (1..maxPage, default 1) and pageSize (1..100, default 20).
func ParsePagination(c *gin.Context) (page, pageSize, offset int) {
	page = 1
	if n, err := strconv.Atoi(c.Query("page")); err == nil {
		page = min(max(n, 1), maxPage)
	}
	pageSize = defaultPageSize
	if n, err := strconv.Atoi(c.Query("pageSize")); err == nil {
		pageSize = min(max(n, 1), maxPageSize)
	}
	return page, pageSize, (page - 1) * pageSize
}

// buildQuery keeps filters in a fixed order so upstream logs stay comparable.
func buildQuery(filters []string, pageSize, offset int) string {
	parts := append([]string{"select=" + cardColumns}, filters...)
	parts = append(parts,
		"order=created_at.desc",
		"limit="+strconv.Itoa(pageSize),
		"offset="+strconv.Itoa(offset),
	)
	return strings.Join(parts, "&")
}

// SellerRfqs handles GET /seller/rfqs
// 功能：列出其他公司发布的 active RFQ，使用调用者的 token 以保留 RLS
func (h *RFQHandler) SellerRfqs(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if !user.HasCompany() {
		c.JSON(http.StatusForbidden, gin.H{"error": "missing_company_id"})
		return
	}

	page, pageSize, offset := ParsePagination(c)
	query := buildQuery([]string{
		"status=eq.active",
		"buyer_company_id=neq." + url.QueryEscape(user.CompanyID),
	}, pageSize, offset)

	result := h.lister.FetchSellerRfqList(c.Request.Context(), getToken(c), query)
	h.writeList(c, result, page, pageSize)
}

// BuyerRfqs handles GET /buyer/rfqs
func (h *RFQHandler) BuyerRfqs(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	page, pageSize, offset := ParsePagination(c)
	query := buildQuery([]string{"status=eq.active"}, pageSize, offset)

	result := h.lister.FetchBuyerRfqList(c.Request.Context(), getToken(c), query)
	h.writeList(c, result, page, pageSize)
}

// BuyerRfq handles GET /buyer/rfq/:id
func (h *RFQHandler) BuyerRfq(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_params"})
		return
	}

	result := h.lister.FetchBuyerRfq(c.Request.Context(), getToken(c), id)
	if result.Error != nil {
		h.writeListError(c, result.Error)
		return
	}
	if len(result.Rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": result.Rows[0]})
}

// HydrateSeller handles GET /seller/rfq/hydrate?id=&sellerId=
func (h *RFQHandler) HydrateSeller(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	rfqID := strings.TrimSpace(c.Query("id"))
	sellerID := strings.TrimSpace(c.Query("sellerId"))
	if rfqID == "" || sellerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_params"})
		return
	}

	params := map[string]string{"p_rfq_id": rfqID, "p_seller_id": sellerID}
	resp, err := h.rpc.RPCWithUser(c.Request.Context(), hydrateRPC, params, getToken(c))
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Hydrate RPC failed", zap.Error(err))
		writeError(c, err, "rpc_failed")
		return
	}
	if !resp.OK() {
		writeUpstreamError(c, resp.Status, resp.Body)
		return
	}

	c.Data(resp.Status, "application/json", resp.Body)
}

func (h *RFQHandler) writeList(c *gin.Context, result rfq.ListResult, page, pageSize int) {
	if result.Error != nil {
		h.writeListError(c, result.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":     result.Rows,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (h *RFQHandler) writeListError(c *gin.Context, e *rfq.ListError) {
	if e.Status > 0 {
		writeUpstreamError(c, e.Status, e.Details)
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Error("RFQ list failed", zap.String("message", e.Message))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": e.Message})
}
