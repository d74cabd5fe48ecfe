package rfq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"rfqgateway/internal/supabase"
)

// fakeUpstream serves canned bodies keyed by table name (the path prefix before '?').
type fakeUpstream struct {
	mu       sync.Mutex
	service  map[string]string
	failing  map[string]error
	userResp *supabase.Response
	userErr  error
	panicMsg string
	calls    []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{service: map[string]string{}, failing: map[string]error{}}
}

func (f *fakeUpstream) GetWithUser(_ context.Context, path, _ string) (*supabase.Response, error) {
	f.record("user:" + path)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.userResp, nil
}

func (f *fakeUpstream) GetService(ctx context.Context, path string) (json.RawMessage, error) {
	f.record(path)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, _, _ := strings.Cut(path, "?")
	if err, ok := f.failing[table]; ok {
		return nil, err
	}
	body, ok := f.service[table]
	if !ok {
		return nil, errors.New("unexpected table " + table)
	}
	return json.RawMessage(body), nil
}

func (f *fakeUpstream) record(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
}

func (f *fakeUpstream) callsTo(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, table+"?") {
			n++
		}
	}
	return n
}
