package analyses

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/shared/server/middleware"
)

func setupAnalysisRouter(t *testing.T, limit int) (*gin.Engine, *Handler, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t, limit)
	h := NewHandler(svc)
	h.poll = nil

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, h, svc
}

func doJSON(t *testing.T, router http.Handler, method, path, guest string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if guest != "" {
		req.Header.Set(middleware.HeaderGuestID, guest)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, resp.Body.String())
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func createViaAPI(t *testing.T, router http.Handler, guest string) string {
	t.Helper()
	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", guest, map[string]string{
		"resumeText":     validResume,
		"jobDescription": testJD,
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, body %s", resp.Code, resp.Body.String())
	}
	var created struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
	}
	decodeBody(t, resp, &created)
	if created.AnalysisID == "" || created.Status != StatusCompleted {
		t.Fatalf("created = %+v", created)
	}
	return created.AnalysisID
}

func TestCreateAndGetAnalysis(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	id := createViaAPI(t, router, "g1")

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id, "g1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get status = %d", resp.Code)
	}
	var preview map[string]json.RawMessage
	decodeBody(t, resp, &preview)
	if _, ok := preview["preview"]; !ok {
		t.Fatalf("expected preview, got %v", preview)
	}
	if _, ok := preview["result"]; ok {
		t.Fatal("preview view leaked the full result")
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id+"?view=full", "g1", nil)
	var full struct {
		Status string `json:"status"`
		Result struct {
			ATSScore        int            `json:"atsScore"`
			SectionScores   map[string]int `json:"sectionScores"`
			MissingKeywords []string       `json:"missingKeywords"`
		} `json:"result"`
	}
	decodeBody(t, resp, &full)
	if full.Status != StatusCompleted || len(full.Result.SectionScores) != 5 {
		t.Fatalf("full = %+v", full)
	}
}

func TestGetAnalysisOtherUserIsNotFound(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	id := createViaAPI(t, router, "g1")

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id, "g2", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
	var env errorEnvelope
	decodeBody(t, resp, &env)
	if env.Error.Code != "NOT_FOUND" {
		t.Fatalf("code = %q", env.Error.Code)
	}
}

func TestCreateAnalysisValidation(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	cases := []struct {
		name    string
		payload any
	}{
		{"missing job description", map[string]string{"resumeText": validResume}},
		{"missing resume", map[string]string{"jobDescription": testJD}},
		{"wrong type", map[string]int{"resumeText": 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", "g1", tc.payload)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
			var env errorEnvelope
			decodeBody(t, resp, &env)
			if env.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("code = %q", env.Error.Code)
			}
		})
	}
}

func TestCreateAnalysisRequiresIdentity(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", "", map[string]string{
		"resumeText": validResume, "jobDescription": testJD,
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestCreateAnalysisLimitReached(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 1)
	createViaAPI(t, router, "g1")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", "g1", map[string]string{
		"resumeText": validResume, "jobDescription": testJD,
	})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.Code)
	}
	var env errorEnvelope
	decodeBody(t, resp, &env)
	if env.Error.Code != "LIMIT_REACHED" {
		t.Fatalf("code = %q", env.Error.Code)
	}

	// Quota is per identity.
	createViaAPI(t, router, "g2")
}

func TestGetAnalysisPollLimit(t *testing.T) {
	router, h, _ := setupAnalysisRouter(t, 10)
	id := createViaAPI(t, router, "g1")

	now := time.Unix(100, 0)
	h.poll = newPollLimiter(time.Second, func() time.Time { return now })

	if resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id, "g1", nil); resp.Code != http.StatusOK {
		t.Fatalf("first poll = %d", resp.Code)
	}
	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id, "g1", nil)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll = %d, want 429", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", resp.Header().Get("Retry-After"))
	}
	now = now.Add(time.Second)
	if resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+id, "g1", nil); resp.Code != http.StatusOK {
		t.Fatalf("poll after window = %d", resp.Code)
	}
}

func TestListAnalyses(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	first := createViaAPI(t, router, "g1")
	second := createViaAPI(t, router, "g1")
	createViaAPI(t, router, "g2")

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses?limit=500", "g1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var out struct {
		Items []struct {
			AnalysisID string `json:"analysisId"`
			ATSScore   *int   `json:"atsScore"`
		} `json:"items"`
		Limit int `json:"limit"`
	}
	decodeBody(t, resp, &out)
	if out.Limit != defaultListLimit {
		t.Fatalf("limit = %d, want default", out.Limit)
	}
	if len(out.Items) != 2 || out.Items[0].AnalysisID != second || out.Items[1].AnalysisID != first {
		t.Fatalf("items = %+v", out.Items)
	}
	if out.Items[0].ATSScore == nil {
		t.Fatal("completed item should carry atsScore")
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/analyses?limit=1&offset=1", "g1", nil)
	decodeBody(t, resp, &out)
	if len(out.Items) != 1 || out.Items[0].AnalysisID != first {
		t.Fatalf("page = %+v", out.Items)
	}
}

func TestSegmentEndpoint(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	resp := doJSON(t, router, http.MethodPost, "/api/v1/segment", "g1", map[string]string{"resumeText": validResume})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var out struct {
		Sections      map[string]string `json:"sections"`
		SectionsFound []string          `json:"sectionsFound"`
		Fallback      bool              `json:"fallback"`
	}
	decodeBody(t, resp, &out)
	if !strings.Contains(out.Sections["skills"], "Kubernetes") {
		t.Fatalf("skills = %q", out.Sections["skills"])
	}
	if len(out.SectionsFound) != 4 || out.Fallback {
		t.Fatalf("out = %+v", out)
	}

	resp = doJSON(t, router, http.MethodPost, "/api/v1/segment", "g1", map[string]string{"resumeText": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("blank status = %d", resp.Code)
	}
}

func uploadRequest(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(middleware.HeaderGuestID, "g1")
	return req
}

func TestUploadAnalysis(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "cv.txt", []byte(validResume), map[string]string{"jobDescription": testJD}))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	var out struct {
		AnalysisID string `json:"analysisId"`
		Validation struct {
			Words   int      `json:"words"`
			Signals []string `json:"signals"`
		} `json:"validation"`
	}
	decodeBody(t, resp, &out)
	if out.AnalysisID == "" || out.Validation.Words < 50 || len(out.Validation.Signals) < 2 {
		t.Fatalf("out = %+v", out)
	}
}

func TestUploadNotAResume(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	recipe := []byte(strings.Repeat("Mix the flour with sugar and butter then bake slowly until golden. ", 10))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "recipe.txt", recipe, map[string]string{"jobDescription": testJD}))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
	var env errorEnvelope
	decodeBody(t, resp, &env)
	if env.Error.Code != "NOT_A_RESUME" || !strings.Contains(string(env.Error.Details), `"canForce":true`) {
		t.Fatalf("error = %+v details %s", env.Error, env.Error.Details)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "recipe.txt", recipe, map[string]string{"jobDescription": testJD, "force": "true"}))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("forced status = %d, body %s", resp.Code, resp.Body.String())
	}
}

func TestUploadRejects(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, 10)
	cases := []struct {
		name    string
		file    string
		content []byte
		want    int
	}{
		{"binary", "cv.bin", []byte{0x00, 0x01, 0x02, 0x03}, http.StatusUnsupportedMediaType},
		{"blank text", "cv.txt", []byte("   \n\n  "), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, uploadRequest(t, tc.file, tc.content, map[string]string{"jobDescription": testJD}))
			if resp.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", resp.Code, tc.want, resp.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/upload", strings.NewReader("jobDescription=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.HeaderGuestID, "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d, want 400", resp.Code)
	}
}
