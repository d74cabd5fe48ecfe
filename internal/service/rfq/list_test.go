package rfq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfqgateway/internal/supabase"
)

func newTestService(f *fakeUpstream) *Service {
	return NewService(f, NewEnricher(f, nil), "", nil)
}

func TestFetchSellerRfqList_Success(t *testing.T) {
	f := seededUpstream()
	f.userResp = &supabase.Response{Status: http.StatusOK, Body: json.RawMessage(`[
		{"id":"r1","title":"Bolts RFQ","status":"active","first_category_path":"hardware","city":"Lyon"},
		{"id":"r2","public_id":"RFQ-2","quotations_count":5}
	]`)}
	s := newTestService(f)

	res := s.FetchSellerRfqList(context.Background(), "tok", "status=eq.active&limit=2")
	require.Nil(t, res.Error)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "Bolts RFQ", res.Rows[0].Title)
	assert.Equal(t, 2, res.Rows[0].QuotationsCount)
	assert.Equal(t, 3, res.Rows[0].ItemsCount)
	assert.Equal(t, []string{"Bolts", "Nuts"}, res.Rows[0].ItemsPreview)
	require.NotNil(t, res.Rows[0].CompanyLocation)

	assert.Equal(t, "RFQ-2", res.Rows[1].Title)
	assert.Equal(t, 5, res.Rows[1].QuotationsCount)

	require.NotEmpty(t, f.calls)
	assert.Equal(t, "user:v_rfqs_card?status=eq.active&limit=2", f.calls[0])
}

func TestFetchSellerRfqList_UpstreamError(t *testing.T) {
	f := seededUpstream()
	f.userResp = &supabase.Response{Status: http.StatusForbidden, Body: json.RawMessage(`{"message":"denied"}`)}
	s := newTestService(f)

	res := s.FetchSellerRfqList(context.Background(), "tok", "")
	assert.Nil(t, res.Rows)
	require.NotNil(t, res.Error)
	assert.Equal(t, http.StatusForbidden, res.Error.Status)
	assert.JSONEq(t, `{"message":"denied"}`, string(res.Error.Details))
	assert.Zero(t, f.callsTo("quotations"))
}

func TestFetchSellerRfqList_TransportError(t *testing.T) {
	f := seededUpstream()
	f.userErr = errors.New("dial tcp: i/o timeout")
	s := newTestService(f)

	res := s.FetchSellerRfqList(context.Background(), "tok", "")
	require.NotNil(t, res.Error)
	assert.Zero(t, res.Error.Status)
	assert.Contains(t, res.Error.Message, "i/o timeout")
}

func TestFetchSellerRfqList_PanicBecomesError(t *testing.T) {
	f := seededUpstream()
	f.panicMsg = "unexpected shape"
	s := newTestService(f)

	res := s.FetchSellerRfqList(context.Background(), "tok", "")
	require.NotNil(t, res.Error)
	assert.Equal(t, "unexpected shape", res.Error.Message)
}

func TestFetchSellerRfqList_MalformedBody(t *testing.T) {
	f := seededUpstream()
	f.userResp = &supabase.Response{Status: http.StatusOK, Body: json.RawMessage(`{"raw":"<html>"}`)}
	s := newTestService(f)

	res := s.FetchSellerRfqList(context.Background(), "tok", "")
	require.Nil(t, res.Error)
	assert.Empty(t, res.Rows)
}

func TestFetchBuyerRfq_QueriesByID(t *testing.T) {
	f := seededUpstream()
	f.userResp = &supabase.Response{Status: http.StatusOK, Body: json.RawMessage(`[{"id":"r1"}]`)}
	s := NewService(f, NewEnricher(f, nil), "v_custom", nil)

	res := s.FetchBuyerRfq(context.Background(), "tok", "r1")
	require.Nil(t, res.Error)
	require.Len(t, res.Rows, 1)

	assert.True(t, strings.HasPrefix(f.calls[0], "user:v_custom?"))
	assert.Contains(t, f.calls[0], "id=eq.r1")
}
