package transport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/auth"
	"github.com/onlygantt/ganttd/internal/domain/document"
	"github.com/onlygantt/ganttd/internal/domain/lock"
	"github.com/onlygantt/ganttd/internal/jsonfile"
	"github.com/onlygantt/ganttd/internal/sqlite"
	"github.com/onlygantt/ganttd/internal/transport"
)

type testEnv struct {
	t      *testing.T
	server *httptest.Server
	locks  *lock.Service
	docs   *document.Service
	auth   *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	docStore, err := jsonfile.NewDocumentStore(filepath.Join(dir, "departments"), true, nil)
	require.NoError(t, err)
	lockStore, err := jsonfile.NewLockStore(filepath.Join(dir, "locks.json"), nil)
	require.NoError(t, err)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	verify := func(userID, _ string) (*auth.User, error) {
		return &auth.User{UserID: userID, DisplayName: userID}, nil
	}

	locks := lock.NewService(lockStore, time.Hour, nil)
	docs := document.NewService(docStore, locks, nil)
	authSvc := auth.NewService(verify, "admin", "admin123", time.Hour, nil)
	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), nil)

	server := transport.NewServer(transport.Options{
		Locks:          locks,
		Documents:      docs,
		Auth:           authSvc,
		Audit:          auditSvc,
		MaxUploadBytes: 1 << 20,
		Logger:         nil,
	})

	ts := httptest.NewServer(server.Router(nil))
	t.Cleanup(ts.Close)

	return &testEnv{t: t, server: ts, locks: locks, docs: docs, auth: authSvc}
}

func (e *testEnv) request(method, path, token string, body any) (*http.Response, map[string]any) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-User-Token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) adminRequest(method, path, adminToken string, body any) (*http.Response, map[string]any) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) login(userName string) string {
	e.t.Helper()
	resp, body := e.request(http.MethodPost, "/api/auth/login", "",
		map[string]string{"userId": userName, "password": "pw"})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func (e *testEnv) adminLogin() string {
	e.t.Helper()
	resp, body := e.request(http.MethodPost, "/api/admin/login", "",
		map[string]string{"userId": "admin", "password": "admin123"})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func (e *testEnv) createDepartment(name string) {
	e.t.Helper()
	_, err := e.docs.Create(name, "admin")
	require.NoError(e.t, err)
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestHTTP_HealthAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := env.login("alice")
	require.NotEmpty(t, token)
}

func TestHTTP_LoginRejectsAdminAccount(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(http.MethodPost, "/api/auth/login", "",
		map[string]string{"userId": "admin", "password": "admin123"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "ADMIN_LOCAL_ONLY", errorCode(body))
}

func TestHTTP_LockLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	bobToken := env.login("bob")

	// Unlocked status.
	resp, body := env.request(http.MethodGet, "/api/lock/engineering/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["locked"])

	// Alice acquires.
	resp, body = env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice", "clientHost": "alice-host"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["locked"])
	require.Equal(t, "alice", body["ownerUserName"])

	// Bob conflicts and learns who holds it.
	resp, body = env.request(http.MethodPost, "/api/lock/engineering/acquire", bobToken,
		map[string]string{"userName": "bob"})
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	require.Equal(t, "alice", body["ownerUserName"])

	// Alice heartbeats; Bob cannot.
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/heartbeat", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.request(http.MethodPost, "/api/lock/engineering/heartbeat", bobToken,
		map[string]string{"userName": "bob"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "LOCK_NOT_OWNED", errorCode(body))

	// Release carries no session token (beacon path) and is idempotent.
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/release", "",
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/release", "",
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Bob can take it now.
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/acquire", bobToken,
		map[string]string{"userName": "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_AcquireRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")

	// No token at all.
	resp, body := env.request(http.MethodPost, "/api/lock/engineering/acquire", "",
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	// Token issued for a different user.
	resp, body = env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "bob"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	// Missing user name.
	resp, body = env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(body))

	// Token in the body works too.
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/acquire", "",
		map[string]string{"userName": "alice", "userToken": aliceToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_SaveFlow(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")

	project := map[string]any{
		"name":   "Website",
		"color":  "#4f46e5",
		"state":  "not_started",
		"phases": []any{},
	}

	// Saving without the lock is rejected with guidance.
	resp, body := env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{"userName": "alice", "projects": []any{project}, "expectedRevision": 1})
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	require.Equal(t, "LOCK_REQUIRED", errorCode(body))

	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Missing expectedRevision is a client bug, not a conflict.
	resp, body = env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{"userName": "alice", "projects": []any{project}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(body))

	// Accepted save bumps the revision.
	resp, body = env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{"userName": "alice", "projects": []any{project}, "expectedRevision": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meta := body["meta"].(map[string]any)
	require.Equal(t, float64(2), meta["revision"])

	// A stale revision is refused with the authoritative state attached.
	resp, body = env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{"userName": "alice", "projects": []any{project}, "expectedRevision": 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "REVISION_MISMATCH", errorCode(body))
	require.Equal(t, float64(2), body["currentRevision"])
	require.NotNil(t, body["meta"])

	// Read back for the next revision and retry.
	resp, body = env.request(http.MethodGet, "/api/projects/engineering", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	current := body["meta"].(map[string]any)
	require.Equal(t, float64(2), current["revision"])
}

func TestHTTP_SaveValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{
			"userName":         "alice",
			"projects":         []any{map[string]any{"name": ""}},
			"expectedRevision": 1,
		})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_ERROR", errorCode(body))
}

func TestHTTP_SaveLockedByOther(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	bobToken := env.login("bob")

	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", bobToken,
		map[string]string{"userName": "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Alice gets the holder's snapshot, not a bare error.
	resp, body := env.request(http.MethodPost, "/api/projects/engineering", aliceToken,
		map[string]any{"userName": "alice", "projects": []any{}, "expectedRevision": 1})
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	require.Equal(t, "bob", body["ownerUserName"])
}

func TestHTTP_Upload(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := `{"projects":[{"name":"Uploaded","color":"#333","state":"not_started","phases":[]}],"meta":{"revision":42}}`
	resp, body := env.upload("engineering", aliceToken, "alice", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meta := body["meta"].(map[string]any)
	// Upload ignores the incoming revision and bumps the current one.
	require.Equal(t, float64(2), meta["revision"])

	resp, body = env.upload("engineering", aliceToken, "alice", "{broken")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_JSON", errorCode(body))
}

func (e *testEnv) upload(department, token, userName, payload string) (*http.Response, map[string]any) {
	e.t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(e.t, writer.WriteField("userName", userName))
	part, err := writer.CreateFormFile("file", "gantt.json")
	require.NoError(e.t, err)
	_, err = part.Write([]byte(payload))
	require.NoError(e.t, err)
	require.NoError(e.t, writer.Close())

	req, err := http.NewRequest(http.MethodPost,
		e.server.URL+"/api/upload/"+department, &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-Token", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestHTTP_DepartmentListingAndPasswords(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	require.NoError(t, env.docs.ResetPassword("engineering", "s3cret"))

	resp, body := env.request(http.MethodGet, "/api/departments", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	departments := body["departments"].([]any)
	require.Len(t, departments, 1)
	first := departments[0].(map[string]any)
	require.Equal(t, "engineering", first["name"])
	require.Equal(t, true, first["protected"])

	resp, _ = env.request(http.MethodPost, "/api/departments/engineering/verify", "",
		map[string]string{"password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.request(http.MethodPost, "/api/departments/engineering/verify", "",
		map[string]string{"password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "INVALID_PASSWORD", errorCode(body))

	resp, _ = env.request(http.MethodPost, "/api/departments/engineering/change-password", "",
		map[string]string{"oldPassword": "s3cret", "newPassword": "n3w"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(http.MethodPost, "/api/departments/engineering/verify", "",
		map[string]string{"password": "n3w"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_ExportAttachesFile(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")

	resp, body := env.request(http.MethodGet, "/api/departments/engineering/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "engineering.json")
	require.NotNil(t, body["projects"])
	require.NotNil(t, body["meta"])
	// Exports never carry the password.
	_, hasPassword := body["password"]
	require.False(t, hasPassword)
}

func TestHTTP_AdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(http.MethodPost, "/api/departments", "",
		map[string]string{"name": "engineering"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	resp, _ = env.adminRequest(http.MethodGet, "/api/admin/audit", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_AdminDepartmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminLogin()

	resp, body := env.adminRequest(http.MethodPost, "/api/departments", adminToken,
		map[string]string{"name": "engineering", "password": "s3cret"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "engineering", body["name"])

	resp, body = env.adminRequest(http.MethodPost, "/api/departments", adminToken,
		map[string]string{"name": "engineering"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "ALREADY_EXISTS", errorCode(body))

	resp, body = env.adminRequest(http.MethodPost, "/api/departments", adminToken,
		map[string]string{"name": "../bad"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_NAME", errorCode(body))

	resp, _ = env.adminRequest(http.MethodPost,
		"/api/departments/engineering/reset-password", adminToken,
		map[string]string{"newPassword": "fresh"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, env.docs.VerifyPassword("engineering", "fresh"))

	resp, body = env.adminRequest(http.MethodGet, "/api/admin/departments", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	departments := body["departments"].([]any)
	require.Len(t, departments, 1)
	first := departments[0].(map[string]any)
	require.Equal(t, true, first["protected"])
	require.NotNil(t, first["meta"])
	require.NotNil(t, first["lock"])

	resp, _ = env.adminRequest(http.MethodDelete, "/api/departments/engineering", adminToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.adminRequest(http.MethodDelete, "/api/departments/engineering", adminToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHTTP_AdminReleaseFreesLock(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	adminToken := env.adminLogin()

	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.adminRequest(http.MethodPost,
		"/api/lock/engineering/admin-release", adminToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := env.request(http.MethodGet, "/api/lock/engineering/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["locked"])
}

func TestHTTP_AuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	adminToken := env.adminLogin()

	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.request(http.MethodPost, "/api/lock/engineering/release", "",
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := env.adminRequest(http.MethodGet,
		"/api/admin/audit?department=engineering", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["entries"].([]any)
	require.GreaterOrEqual(t, len(entries), 2)

	types := map[string]bool{}
	for _, raw := range entries {
		entry := raw.(map[string]any)
		types[entry["type"].(string)] = true
	}
	require.True(t, types["lock_acquired"])
	require.True(t, types["lock_released"])

	resp, body = env.adminRequest(http.MethodGet,
		"/api/admin/audit?limit=0", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(body))
}

func TestHTTP_AdminLogout(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminLogin()

	resp, _ := env.adminRequest(http.MethodPost, "/api/admin/logout", adminToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.adminRequest(http.MethodGet, "/api/admin/departments", adminToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_UploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.createDepartment("engineering")
	aliceToken := env.login("alice")
	resp, _ := env.request(http.MethodPost, "/api/lock/engineering/acquire", aliceToken,
		map[string]string{"userName": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	big := fmt.Sprintf(`{"projects":[],"padding":%q}`, bytes.Repeat([]byte("x"), 2<<20))
	resp, body := env.upload("engineering", aliceToken, "alice", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "FILE_TOO_LARGE", errorCode(body))
}
