package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"cardscope/models"
	"cardscope/pkg/config"
	"cardscope/pkg/ocr"
	"cardscope/pkg/recognition"
)

type fakeScanner struct {
	result *recognition.ScanResult
	err    error
	raw    []byte
}

func (f *fakeScanner) Scan(_ context.Context, raw []byte) (*recognition.ScanResult, error) {
	f.raw = raw
	return f.result, f.err
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T, s cardScanner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(dir, "test.db")
	cfg.Storage.UploadBase = filepath.Join(dir, "uploads")
	cfg.Auth.JWTSecret = "test-secret"
	appConfig = cfg
	jwtSecret = []byte(cfg.Auth.JWTSecret)
	if err := initDB(context.Background(), cfg, true); err != nil {
		t.Fatalf("init db: %v", err)
	}
	scanner = s
	t.Cleanup(func() { scanner = nil })
	r := gin.New()
	setupRoutes(r)
	return r
}

func loginAs(t *testing.T, r http.Handler, username, password string) (string, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/login", bytes.NewReader(body), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	token, _ := out["token"].(string)
	refresh, _ := out["refresh_token"].(string)
	if token == "" || refresh == "" {
		t.Fatalf("missing tokens in %+v", out)
	}
	return token, refresh
}

func register(t *testing.T, r http.Handler, username, password string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewReader(body), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "card.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestAuthFlow(t *testing.T) {
	r := setupTestServer(t, nil)
	register(t, r, "collector", "secret1")

	body, _ := json.Marshal(map[string]string{"username": "collector", "password": "secret1"})
	if resp := performRequest(r, http.MethodPost, "/register", bytes.NewReader(body), "", "application/json"); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate register, got %d", resp.Code)
	}

	token, refresh := loginAs(t, r, "collector", "secret1")
	resp := performRequest(r, http.MethodGet, "/me", nil, token, "")
	if resp.Code != http.StatusOK || !bytes.Contains(resp.Body.Bytes(), []byte(`"username":"collector"`)) {
		t.Fatalf("me failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	rb, _ := json.Marshal(map[string]string{"refresh_token": refresh})
	resp = performRequest(r, http.MethodPost, "/refresh", bytes.NewReader(rb), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	// rotated token cannot be reused
	resp = performRequest(r, http.MethodPost, "/refresh", bytes.NewReader(rb), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected reuse of rotated token to fail, got %d", resp.Code)
	}

	if resp := performRequest(r, http.MethodGet, "/cards", nil, "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestScanRecordsHistory(t *testing.T) {
	fs := &fakeScanner{result: &recognition.ScanResult{
		ScanMethod: recognition.MethodCode,
		Confidence: 1.0,
		CardData: &recognition.CardData{
			Name: "Blue-Eyes White Dragon", Game: "Yu-Gi-Oh!", SetCode: "LOB", CardNumber: "001",
			ImagePath: "http://localhost:8081/public/scans/x.jpg",
		},
	}}
	r := setupTestServer(t, fs)
	register(t, r, "scanner1", "secret1")
	token, _ := loginAs(t, r, "scanner1", "secret1")

	body, ct := multipartImage(t, []byte("fake-jpeg"))
	resp := performRequest(r, http.MethodPost, "/cards/scan", body, token, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("scan failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if string(fs.raw) != "fake-jpeg" {
		t.Fatalf("scanner received %q", fs.raw)
	}
	var got recognition.ScanResult
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ScanMethod != recognition.MethodCode || got.CardData.Name != "Blue-Eyes White Dragon" {
		t.Fatalf("unexpected result %+v", got)
	}

	var metas []models.ScanMetadata
	db.Find(&metas)
	if len(metas) != 1 || metas[0].ScanMethod != "code" || metas[0].ImagePath == "" {
		t.Fatalf("unexpected scan history %+v", metas)
	}
}

func TestScanDecodeFailure(t *testing.T) {
	r := setupTestServer(t, &fakeScanner{err: fmt.Errorf("%w: junk", ocr.ErrDecode)})
	register(t, r, "scanner2", "secret1")
	token, _ := loginAs(t, r, "scanner2", "secret1")

	body, ct := multipartImage(t, []byte("junk"))
	resp := performRequest(r, http.MethodPost, "/cards/scan", body, token, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp.Body.String() != `{"error":"Failed to process image"}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestCreateAndListCards(t *testing.T) {
	r := setupTestServer(t, nil)
	register(t, r, "alice", "secret1")
	register(t, r, "bob", "secret1")
	alice, _ := loginAs(t, r, "alice", "secret1")
	bob, _ := loginAs(t, r, "bob", "secret1")

	missing, _ := json.Marshal(map[string]any{"name": "Pikachu", "game": "Pokemon", "set_code": "SV1", "card_number": "025"})
	if resp := performRequest(r, http.MethodPost, "/cards", bytes.NewReader(missing), alice, "application/json"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confidence, got %d", resp.Code)
	}

	card, _ := json.Marshal(map[string]any{
		"name": "Pikachu", "game": "Pokemon", "set_code": "SV1", "card_number": "025",
		"price": "0.24", "confidence": 0,
	})
	resp := performRequest(r, http.MethodPost, "/cards", bytes.NewReader(card), alice, "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("create failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	var list []models.Card
	resp = performRequest(r, http.MethodGet, "/cards", nil, alice, "")
	_ = json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Name != "Pikachu" || *list[0].Price != "0.24" {
		t.Fatalf("unexpected alice cards %+v", list)
	}
	resp = performRequest(r, http.MethodGet, "/cards", nil, bob, "")
	list = nil
	_ = json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Fatalf("bob should not see alice's cards, got %+v", list)
	}

	admin, _ := loginAs(t, r, "admin", "admin123")
	resp = performRequest(r, http.MethodGet, "/cards", nil, admin, "")
	list = nil
	_ = json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Fatalf("admin should see all cards, got %d", len(list))
	}
	resp = performRequest(r, http.MethodPost, "/cards/train-ml", nil, bob, "")
	if resp.Code != http.StatusAccepted || !bytes.Contains(resp.Body.Bytes(), []byte("bob")) {
		t.Fatalf("train-ml status=%d body=%s", resp.Code, resp.Body.String())
	}
	if resp := performRequest(r, http.MethodGet, "/cards", nil, "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestRootAndCORS(t *testing.T) {
	r := setupTestServer(t, nil)
	resp := performRequest(r, http.MethodGet, "/", nil, "", "")
	if resp.Code != http.StatusOK || resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected root response %d %v", resp.Code, resp.Header())
	}
	resp = performRequest(r, http.MethodOptions, "/cards/scan", nil, "", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", resp.Code)
	}
}
