package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfqgateway/internal/model"
	"rfqgateway/pkg/rbac"
	"rfqgateway/pkg/util"
)

type fakeStore struct {
	mu          sync.Mutex
	posts       map[string][]map[string]any
	failPost    map[string]error
	invites     string
	deletes     []string
	patches     []string
	metaUpdates map[string]map[string]any
	metaErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:       map[string][]map[string]any{},
		failPost:    map[string]error{},
		invites:     `[]`,
		metaUpdates: map[string]map[string]any{},
	}
}

func (f *fakeStore) GetService(_ context.Context, path string) (json.RawMessage, error) {
	if strings.HasPrefix(path, "company_invites?") {
		return json.RawMessage(f.invites), nil
	}
	return nil, fmt.Errorf("unexpected path %s", path)
}

func (f *fakeStore) Post(_ context.Context, table string, rows any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPost[table]; err != nil {
		return nil, err
	}
	list := rows.([]map[string]any)
	out := make([]map[string]any, 0, len(list))
	for i, r := range list {
		cp := map[string]any{"id": fmt.Sprintf("%s-%d", table, len(f.posts[table])+i+1)}
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	f.posts[table] = append(f.posts[table], list...)
	b, _ := json.Marshal(out)
	return b, nil
}

func (f *fakeStore) Patch(_ context.Context, table, filter string, _ any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, table+"?"+filter)
	return json.RawMessage(`[]`), nil
}

func (f *fakeStore) Delete(_ context.Context, table, filter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, table+"?"+filter)
	return nil
}

func (f *fakeStore) UpdateUserAppMetadata(_ context.Context, userID string, meta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaUpdates[userID] = meta
	return f.metaErr
}

type fakeTx struct {
	called bool
	err    error
}

func (f *fakeTx) CreateCompanyWithOwner(_ context.Context, c *model.Company, role string) (*model.Company, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	out := *c
	out.ID = "tx-company"
	return &out, nil
}

type recordingSessions struct{ tokens []string }

func (r *recordingSessions) Invalidate(_ context.Context, token string) {
	r.tokens = append(r.tokens, token)
}

var owner = &model.AuthUser{ID: "u-owner", Email: "owner@acme.test"}

func TestCreateCompany_REST(t *testing.T) {
	store := newFakeStore()
	sessions := &recordingSessions{}
	s := NewService(store, nil, sessions, nil, 0, nil)

	c, err := s.CreateCompany(context.Background(), owner, "tok", CreateInput{Name: "  Acme  "})
	require.NoError(t, err)
	assert.Equal(t, "companies-1", c.ID)
	assert.Equal(t, "Acme", c.Name)

	require.Len(t, store.posts["company_memberships"], 1)
	m := store.posts["company_memberships"][0]
	assert.Equal(t, "companies-1", m["company_id"])
	assert.Equal(t, rbac.CompanyRoleOwner, m["role"])

	assert.Equal(t, "companies-1", store.metaUpdates["u-owner"]["company_id"])
	assert.Equal(t, []string{"tok"}, sessions.tokens)
}

func TestCreateCompany_MissingName(t *testing.T) {
	s := NewService(newFakeStore(), nil, nil, nil, 0, nil)
	_, err := s.CreateCompany(context.Background(), owner, "tok", CreateInput{Name: " "})
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestCreateCompany_CompensatesFailedMembership(t *testing.T) {
	store := newFakeStore()
	store.failPost["company_memberships"] = errors.New("rls violation")
	s := NewService(store, nil, nil, nil, 0, nil)

	_, err := s.CreateCompany(context.Background(), owner, "tok", CreateInput{Name: "Acme"})
	require.Error(t, err)
	assert.Equal(t, []string{"companies?id=eq.companies-1"}, store.deletes)
	assert.Empty(t, store.metaUpdates)
}

func TestCreateCompany_Transactional(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTx{}
	s := NewService(store, tx, nil, nil, 0, nil)

	c, err := s.CreateCompany(context.Background(), owner, "tok", CreateInput{Name: "Acme"})
	require.NoError(t, err)
	assert.True(t, tx.called)
	assert.Equal(t, "tx-company", c.ID)
	assert.Empty(t, store.posts)
}

func TestCreateCompany_MetadataFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	store.metaErr = errors.New("admin api down")
	s := NewService(store, nil, nil, nil, 0, nil)

	_, err := s.CreateCompany(context.Background(), owner, "tok", CreateInput{Name: "Acme"})
	assert.NoError(t, err)
}

func TestInvite(t *testing.T) {
	member := &model.AuthUser{ID: "u-1", CompanyID: "c-1", CompanyRole: rbac.CompanyRoleOwner}

	tests := []struct {
		name    string
		user    *model.AuthUser
		input   InviteInput
		wantErr error
		role    string
	}{
		{"no company", &model.AuthUser{ID: "u-2"}, InviteInput{Email: "a@b.co"}, ErrMissingCompany, ""},
		{"no email", member, InviteInput{}, ErrMissingEmail, ""},
		{"owner role not invitable", member, InviteInput{Email: "a@b.co", Role: "owner"}, ErrInvalidRole, ""},
		{"default member", member, InviteInput{Email: " A@B.co "}, nil, rbac.CompanyRoleMember},
		{"admin", member, InviteInput{Email: "a@b.co", Role: "admin"}, nil, rbac.CompanyRoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			s := NewService(store, nil, nil, nil, time.Hour, nil)

			inv, err := s.Invite(context.Background(), tt.user, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, inv.Role)
			assert.Equal(t, "a@b.co", inv.Email)
			assert.Equal(t, "c-1", inv.CompanyID)
			assert.Len(t, inv.Token, 36)
			assert.WithinDuration(t, time.Now().Add(time.Hour), inv.ExpiresAt, time.Minute)
		})
	}
}

func TestInvite_MemberLacksPermission(t *testing.T) {
	s := NewService(newFakeStore(), nil, nil, nil, 0, nil)
	_, err := s.Invite(context.Background(),
		&model.AuthUser{ID: "u", CompanyID: "c", CompanyRole: rbac.CompanyRoleMember},
		InviteInput{Email: "x@y.z"})

	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func inviteJSON(email string, expires time.Time, accepted bool) string {
	acceptedAt := "null"
	if accepted {
		acceptedAt = `"2024-01-01T00:00:00Z"`
	}
	return fmt.Sprintf(`[{"id":"inv-1","company_id":"c-1","email":%q,"role":"member","token":"t-1","expires_at":%q,"accepted_at":%s}]`,
		email, expires.UTC().Format(time.RFC3339), acceptedAt)
}

func TestGetInvite(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"valid", inviteJSON("new@acme.test", time.Now().Add(time.Hour), false), nil},
		{"missing", `[]`, ErrInviteNotFound},
		{"expired", inviteJSON("new@acme.test", time.Now().Add(-time.Hour), false), ErrInviteNotFound},
		{"accepted", inviteJSON("new@acme.test", time.Now().Add(time.Hour), true), ErrInviteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.invites = tt.body
			s := NewService(store, nil, nil, nil, 0, nil)

			inv, err := s.GetInvite(context.Background(), "t-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c-1", inv.CompanyID)
		})
	}

	s := NewService(newFakeStore(), nil, nil, nil, 0, nil)
	_, err := s.GetInvite(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAcceptInvite(t *testing.T) {
	store := newFakeStore()
	store.invites = inviteJSON("New@Acme.test", time.Now().Add(time.Hour), false)
	sessions := &recordingSessions{}
	s := NewService(store, nil, sessions, nil, 0, nil)

	user := &model.AuthUser{ID: "u-new", Email: "new@acme.test"}
	m, err := s.AcceptInvite(context.Background(), user, "sess", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", m.CompanyID)
	assert.Equal(t, "member", m.Role)

	assert.Equal(t, []string{"company_invites?id=eq.inv-1"}, store.patches)
	assert.Equal(t, "c-1", store.metaUpdates["u-new"]["company_id"])
	assert.Equal(t, []string{"sess"}, sessions.tokens)
}

func TestAcceptInvite_EmailMismatch(t *testing.T) {
	store := newFakeStore()
	store.invites = inviteJSON("someone@else.test", time.Now().Add(time.Hour), false)
	s := NewService(store, nil, nil, nil, 0, nil)

	_, err := s.AcceptInvite(context.Background(), &model.AuthUser{ID: "u", Email: "me@acme.test"}, "sess", "t-1")
	assert.ErrorIs(t, err, ErrInviteEmailMismatch)
	assert.Empty(t, store.posts)
}

func TestAcceptInvite_Deduplicated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Minute, nil)
	store := newFakeStore()
	store.invites = inviteJSON("new@acme.test", time.Now().Add(time.Hour), false)
	s := NewService(store, nil, nil, deduper, 0, nil)
	user := &model.AuthUser{ID: "u-new", Email: "new@acme.test"}

	// simulate a concurrent accept holding the claim
	require.True(t, deduper.AcquireOnce(context.Background(), acceptScope, "t-1"))
	_, err = s.AcceptInvite(context.Background(), user, "sess", "t-1")
	assert.ErrorIs(t, err, ErrAcceptInProgress)

	deduper.Release(context.Background(), acceptScope, "t-1")
	_, err = s.AcceptInvite(context.Background(), user, "sess", "t-1")
	require.NoError(t, err)
}

func TestAcceptInvite_FailureReleasesClaim(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Minute, nil)
	store := newFakeStore()
	store.invites = inviteJSON("new@acme.test", time.Now().Add(time.Hour), false)
	store.failPost["company_memberships"] = errors.New("duplicate key")
	s := NewService(store, nil, nil, deduper, 0, nil)

	_, err = s.AcceptInvite(context.Background(), &model.AuthUser{ID: "u", Email: "new@acme.test"}, "sess", "t-1")
	require.Error(t, err)
	assert.False(t, mr.Exists("dedup:invite_accept:t-1"))
}
