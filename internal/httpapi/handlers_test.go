package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlvinAlvito/posi-mobile/internal/push"
	"github.com/AlvinAlvito/posi-mobile/internal/realtime"
	"github.com/AlvinAlvito/posi-mobile/internal/service"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
)

type fakeStore struct {
	recipients []int64
	progress   map[int64]store.BroadcastProgressRow
	matched    int64
}

func (f *fakeStore) ResolveRecipients(context.Context, int64) ([]int64, error) {
	return f.recipients, nil
}

func (f *fakeStore) CreateQueuedBroadcast(context.Context, store.BroadcastInsert) (int64, error) {
	return 42, nil
}

func (f *fakeStore) CreateLegacyBroadcast(_ context.Context, in store.LegacyBroadcastInsert) (int64, []store.LegacyDelivery, error) {
	deliveries := make([]store.LegacyDelivery, len(in.UserIDs))
	for i, uid := range in.UserIDs {
		deliveries[i] = store.LegacyDelivery{UserID: uid, TicketID: int64(i + 1), MessageID: int64(i + 1)}
	}
	return 41, deliveries, nil
}

func (f *fakeStore) ListBroadcastProgress(context.Context, int) ([]store.BroadcastProgressRow, error) {
	rows := make([]store.BroadcastProgressRow, 0, len(f.progress))
	for _, r := range f.progress {
		rows = append(rows, r)
	}
	return rows, nil
}

func (f *fakeStore) ListBroadcastProgressLegacy(context.Context, int) ([]store.BroadcastProgressRow, error) {
	return nil, nil
}

func (f *fakeStore) BroadcastProgressByID(_ context.Context, id int64) (store.BroadcastProgressRow, bool, error) {
	r, ok := f.progress[id]
	return r, ok, nil
}

func (f *fakeStore) BroadcastExists(_ context.Context, id int64) (bool, error) {
	_, ok := f.progress[id]
	return ok, nil
}

func (f *fakeStore) ResetFailedTargets(context.Context, int64) (int64, error) {
	return f.matched, nil
}

func (f *fakeStore) ResetFailedTargetsByID(context.Context, int64, []int64) (int64, error) {
	return f.matched, nil
}

func (f *fakeStore) UpdateBroadcastStatus(context.Context, int64, string, bool) error {
	return nil
}

func (f *fakeStore) ListTargets(_ context.Context, filter store.TargetListFilter) ([]store.TargetRow, int, error) {
	reason := "push gateway timeout"
	return []store.TargetRow{{ID: 9, UserID: 101, Status: filter.Status, Error: &reason}}, 1, nil
}

func (f *fakeStore) DeviceTokens(context.Context, []int64) (map[int64][]string, error) {
	return nil, nil
}

func (f *fakeStore) UpsertDeviceToken(context.Context, store.DeviceTokenUpsert) error {
	return nil
}

func (f *fakeStore) RevokeDeviceToken(context.Context, int64, string) error {
	return nil
}

type staticCap bool

func (c staticCap) QueueSupported(context.Context) bool { return bool(c) }

func newTestRouter(f *fakeStore, queueSupported bool) *mux.Router {
	svc := &service.BroadcastService{
		Store:      f,
		Capability: staticCap(queueSupported),
		Publisher:  realtime.NopPublisher{},
		Push:       &push.Sender{},
		Signal:     func() {},
	}
	api := &API{Svc: svc, Auth: StaticVerifier{Token: "secret", AdminID: 7}}
	r := mux.NewRouter()
	api.Register(r)
	return r
}

func doReq(t *testing.T, r *mux.Router, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(&fakeStore{}, true)

	rec := doReq(t, r, http.MethodGet, "/admin/broadcasts", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doReq(t, r, http.MethodGet, "/admin/broadcasts", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBroadcastAccepted(t *testing.T) {
	r := newTestRouter(&fakeStore{recipients: []int64{1, 2, 3}}, true)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts", "secret",
		`{"competition_id":7,"subject":"Info","message":"Halo"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(42), body["broadcastId"])
	assert.Equal(t, float64(3), body["totalTargets"])
	assert.Equal(t, "sending", body["status"])
}

func TestCreateBroadcastLegacyCreated(t *testing.T) {
	r := newTestRouter(&fakeStore{recipients: []int64{1}}, false)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts", "secret",
		`{"competition_id":7,"subject":"Info","message":"Halo"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sent", decodeBody(t, rec)["status"])
}

func TestCreateBroadcastRejectsInvalid(t *testing.T) {
	r := newTestRouter(&fakeStore{recipients: []int64{1}}, true)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts", "secret", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doReq(t, r, http.MethodPost, "/admin/broadcasts", "secret",
		`{"competition_id":7,"subject":"Info"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBroadcastNoRecipients(t *testing.T) {
	r := newTestRouter(&fakeStore{}, true)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts", "secret",
		`{"competition_id":7,"subject":"Info","message":"Halo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResume(t *testing.T) {
	f := &fakeStore{
		matched: 2,
		progress: map[int64]store.BroadcastProgressRow{
			5: {ID: 5, Status: "sending", Counts: store.TargetCounts{Total: 4, Sent: 2, Pending: 2}},
		},
	}
	r := newTestRouter(f, true)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts/5/resume", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])

	rec = doReq(t, r, http.MethodPost, "/admin/broadcasts/999/resume", "secret", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doReq(t, r, http.MethodPost, "/admin/broadcasts/abc/resume", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResumeInvalidID(t *testing.T) {
	r := newTestRouter(&fakeStore{}, true)
	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts/0/resume", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryTargets(t *testing.T) {
	f := &fakeStore{
		matched: 2,
		progress: map[int64]store.BroadcastProgressRow{
			5: {ID: 5, Status: "sending", Counts: store.TargetCounts{Total: 4, Sent: 2, Pending: 2}},
		},
	}
	r := newTestRouter(f, true)

	rec := doReq(t, r, http.MethodPost, "/admin/broadcasts/5/retry-targets", "secret",
		`{"target_ids":[11,12]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["retried"])

	rec = doReq(t, r, http.MethodPost, "/admin/broadcasts/5/retry-targets", "secret",
		`{"target_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTargets(t *testing.T) {
	r := newTestRouter(&fakeStore{}, true)

	rec := doReq(t, r, http.MethodGet, "/admin/broadcasts/5/targets?status=failed&page=2&pageSize=10", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	targets := body["targets"].([]any)
	require.Len(t, targets, 1)
	assert.Equal(t, "failed", targets[0].(map[string]any)["status"])

	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["page"])
	assert.Equal(t, float64(10), pagination["pageSize"])
	assert.Equal(t, float64(1), pagination["total"])
}

func TestListTargetsRequiresQueueSchema(t *testing.T) {
	r := newTestRouter(&fakeStore{}, false)
	rec := doReq(t, r, http.MethodGet, "/admin/broadcasts/5/targets", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceEndpoints(t *testing.T) {
	r := newTestRouter(&fakeStore{}, true)

	rec := doReq(t, r, http.MethodPost, "/devices", "secret",
		`{"token":"tok","platform":"android"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, r, http.MethodPost, "/devices", "secret", `{"token":"tok"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doReq(t, r, http.MethodDelete, "/devices", "secret", `{"token":"tok"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, r, http.MethodDelete, "/devices", "secret", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
