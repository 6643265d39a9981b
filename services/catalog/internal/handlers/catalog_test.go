package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/signing"
	"github.com/example/membership-portal/services/catalog/internal/store"
)

var testSecret = []byte("catalog-secret")

const internalToken = "internal-123"

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	})
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func testSigner(t *testing.T) *signing.Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	s, err := signing.New("kid-1", string(pemKey), time.Hour)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return s
}

func seeded(t *testing.T) *store.MemoryCatalogStore {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryCatalogStore()
	mustCourse := func(c store.Course) {
		if _, err := st.UpsertCourse(ctx, c); err != nil {
			t.Fatalf("seed course: %v", err)
		}
	}
	mustLesson := func(l store.Lesson) {
		if _, err := st.UpsertLesson(ctx, l); err != nil {
			t.Fatalf("seed lesson: %v", err)
		}
	}
	mustCourse(store.Course{ID: "c-pub", Title: "Foundations", Slug: "foundations", Published: true})
	mustCourse(store.Course{ID: "c-draft", Title: "Coming soon", Slug: "soon"})
	mustLesson(store.Lesson{ID: "l-1", CourseID: "c-pub", Kind: store.KindLesson, Title: "Intro", MuxPlaybackID: "pb-1", DurationSeconds: 600})
	mustLesson(store.Lesson{ID: "l-2", CourseID: "c-pub", Kind: store.KindGroupCall, Title: "Q&A", Position: 1})
	mustLesson(store.Lesson{ID: "l-draft", CourseID: "c-draft", Kind: store.KindPodcast, Title: "Teaser", MuxPlaybackID: "pb-9", DurationSeconds: 90})
	return st
}

func newRouter(t *testing.T, st store.CatalogStore, signer *signing.Signer) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	New(st, Options{Signer: signer}).Mount(r, auth.JWTVerifier{Secret: testSecret}, internalToken)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListCourses_MemberSeesPublishedOnly(t *testing.T) {
	r := newRouter(t, seeded(t), nil)

	rr := do(t, r, http.MethodGet, "/v1/courses", "", token(t, "m1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out listResponse[store.Course]
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out.Items) != 1 || out.Items[0].ID != "c-pub" {
		t.Fatalf("unexpected courses %+v", out.Items)
	}

	rr = do(t, r, http.MethodGet, "/v1/courses", "", token(t, "a1", auth.RoleAdmin))
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out.Items) != 2 {
		t.Fatalf("admin should see drafts, got %+v", out.Items)
	}
}

func TestListCourses_RequiresAuth(t *testing.T) {
	r := newRouter(t, seeded(t), nil)
	if rr := do(t, r, http.MethodGet, "/v1/courses", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestListLessons_DraftCourseHidden(t *testing.T) {
	r := newRouter(t, seeded(t), nil)

	rr := do(t, r, http.MethodGet, "/v1/courses/c-pub/lessons", "", token(t, "m1", ""))
	var out listResponse[store.Lesson]
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if rr.Code != http.StatusOK || len(out.Items) != 2 || out.Items[0].ID != "l-1" {
		t.Fatalf("unexpected lessons %d %+v", rr.Code, out.Items)
	}
	if strings.Contains(rr.Body.String(), "pb-1") {
		t.Fatal("playback id must not leak to members")
	}

	if rr := do(t, r, http.MethodGet, "/v1/courses/c-draft/lessons", "", token(t, "m1", "")); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for draft course, got %d", rr.Code)
	}
}

func TestGetLesson(t *testing.T) {
	r := newRouter(t, seeded(t), nil)
	if rr := do(t, r, http.MethodGet, "/v1/lessons/l-2", "", token(t, "m1", "")); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/v1/lessons/l-draft", "", token(t, "m1", "")); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/v1/lessons/l-draft", "", token(t, "a1", auth.RoleAdmin)); rr.Code != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", rr.Code)
	}
}

func TestPlayback_SignsToken(t *testing.T) {
	r := newRouter(t, seeded(t), testSigner(t))

	rr := do(t, r, http.MethodGet, "/v1/lessons/l-1/playback", "", token(t, "m1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var tok signing.Token
	if err := json.Unmarshal(rr.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tok.Token == "" || !strings.HasPrefix(tok.StreamURL, "https://stream.mux.com/pb-1.m3u8?token=") {
		t.Fatalf("unexpected token %+v", tok)
	}

	if rr := do(t, r, http.MethodGet, "/v1/lessons/l-2/playback", "", token(t, "m1", "")); rr.Code != http.StatusNotFound {
		t.Fatalf("lesson without video: expected 404, got %d", rr.Code)
	}
}

func TestPlayback_DisabledWithoutSigner(t *testing.T) {
	r := newRouter(t, seeded(t), nil)
	if rr := do(t, r, http.MethodGet, "/v1/lessons/l-1/playback", "", token(t, "m1", "")); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestAdmin_RequiresRole(t *testing.T) {
	r := newRouter(t, seeded(t), nil)
	rr := do(t, r, http.MethodPut, "/v1/admin/courses/c-new", `{"title":"New","slug":"new"}`, token(t, "m1", ""))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAdmin_UpsertAndDeleteLesson(t *testing.T) {
	st := seeded(t)
	r := newRouter(t, st, nil)
	admin := token(t, "a1", auth.RoleAdmin)

	rr := do(t, r, http.MethodPut, "/v1/admin/lessons/l-3",
		`{"courseId":"c-pub","kind":"podcast","title":"Ep 1","muxPlaybackId":"pb-3","durationSeconds":1800}`, admin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"muxPlaybackId":"pb-3"`) {
		t.Fatalf("admin response should include playback id: %s", rr.Body.String())
	}

	rr = do(t, r, http.MethodPut, "/v1/admin/lessons/l-4", `{"courseId":"missing","kind":"lesson","title":"x"}`, admin)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing course: expected 400, got %d", rr.Code)
	}

	rr = do(t, r, http.MethodPut, "/v1/admin/lessons/l-4", `{"courseId":"c-pub","kind":"webinar","title":""}`, admin)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "kind") {
		t.Fatalf("invalid lesson: expected 400 with kind detail, got %d %s", rr.Code, rr.Body.String())
	}

	if rr := do(t, r, http.MethodDelete, "/v1/admin/lessons/l-3", "", admin); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, r, http.MethodDelete, "/v1/admin/lessons/l-3", "", admin); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdmin_SlugConflict(t *testing.T) {
	r := newRouter(t, seeded(t), nil)
	rr := do(t, r, http.MethodPut, "/v1/admin/courses/c-other", `{"title":"Dup","slug":"Foundations"}`, token(t, "a1", auth.RoleAdmin))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestInternalContent(t *testing.T) {
	r := newRouter(t, seeded(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/internal/v1/content/l-1", nil)
	req.Header.Set(auth.InternalTokenHeader, internalToken)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"id":"l-1","durationSeconds":600}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/internal/v1/content/l-1", nil)
	req.Header.Set(auth.InternalTokenHeader, "wrong")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
