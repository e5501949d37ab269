package candidateapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidateinfra"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidatesrv"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type downRepo struct {
	*candidateinfra.MemoryRepository
}

func (downRepo) Ping(context.Context) error { return errors.New("connection refused") }

type fixedEmbedder struct{}

func (fixedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func seed(t *testing.T, repo *candidateinfra.MemoryRepository, appID, first, last string) kernel.CandidateID {
	t.Helper()
	c := candidate.New()
	c.FirstName, c.LastName = first, last
	c.Documents.Set(candidate.DocumentCV, "CV of "+first)
	id, err := repo.Upsert(context.Background(), c, kernel.ApplicationID(appID))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newApp(repo candidate.Repository, vectors candidate.VectorIndex, embedder candidate.Embedder, auth fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, NewHandlers(candidatesrv.NewQueryService(repo, vectors, embedder)), auth)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func get(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestQueryRoutes(t *testing.T) {
	repo := candidateinfra.NewMemoryRepository()
	id := seed(t, repo, "A1", "Jean", "Dupont")
	seed(t, repo, "A2", "Jeanne", "Moussavou")
	seed(t, repo, "", "Paul", "Obiang")
	app := newApp(repo, nil, nil, nil)

	tests := []struct {
		name      string
		target    string
		status    int
		wantCount float64
		wantCode  string
	}{
		{"list", "/candidatures", http.StatusOK, 3, ""},
		{"search first name", "/candidatures/search?first_name=jean", http.StatusOK, 2, ""},
		{"search both", "/candidatures/search?first_name=jean&last_name=DUP", http.StatusOK, 1, ""},
		{"search without criteria", "/candidatures/search", http.StatusBadRequest, 0, "CANDIDATE.SEARCH_CRITERIA_REQUIRED"},
		{"unknown id", "/candidatures/nope", http.StatusNotFound, 0, "CANDIDATE.NOT_FOUND"},
		{"similar without vectors", "/candidatures/similar?q=reseau", http.StatusNotImplemented, 0, "CANDIDATE.VECTOR_UNSUPPORTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, app, tt.target)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if tt.status == http.StatusOK && body["count"] != tt.wantCount {
				t.Errorf("count = %v, want %v", body["count"], tt.wantCount)
			}
		})
	}

	status, body := get(t, app, "/candidatures/"+id.String())
	if status != http.StatusOK || body["first_name"] != "Jean" || body["application_id"] != "A1" {
		t.Fatalf("get by id = %d %v", status, body)
	}
	docs, _ := body["documents"].(map[string]any)
	if docs["cv"] != "CV of Jean" || docs["diplome"] != nil {
		t.Errorf("documents = %v", docs)
	}
}

func TestHealth(t *testing.T) {
	repo := candidateinfra.NewMemoryRepository()
	seed(t, repo, "A1", "Jean", "Dupont")

	status, body := get(t, newApp(repo, nil, nil, nil), "/health")
	if status != http.StatusOK || body["status"] != "ok" || body["count"] != float64(1) {
		t.Fatalf("healthy = %d %v", status, body)
	}

	status, body = get(t, newApp(downRepo{repo}, nil, nil, nil), "/health")
	if status != http.StatusServiceUnavailable || body["code"] != "CANDIDATE.STORE_UNAVAILABLE" {
		t.Fatalf("unhealthy = %d %v", status, body)
	}
}

func TestSimilar(t *testing.T) {
	repo := candidateinfra.NewMemoryRepository()
	near := seed(t, repo, "A1", "Jean", "Dupont")
	far := seed(t, repo, "A2", "Marie", "Mba")
	ctx := context.Background()
	if err := repo.SaveEmbedding(ctx, near, kernel.Embedding{1, 0.1}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveEmbedding(ctx, far, kernel.Embedding{0, 1}); err != nil {
		t.Fatal(err)
	}
	app := newApp(repo, repo, fixedEmbedder{}, nil)

	status, body := get(t, app, "/candidatures/similar?q=reseau&limit=1")
	if status != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("similar = %d %v", status, body)
	}
	items := body["items"].([]any)
	first := items[0].(map[string]any)["candidate"].(map[string]any)
	if first["first_name"] != "Jean" {
		t.Errorf("closest = %v", first["first_name"])
	}

	status, body = get(t, app, "/candidatures/similar?q=")
	if status != http.StatusBadRequest || body["code"] != "CANDIDATE.INVALID_REQUEST" {
		t.Errorf("empty query = %d %v", status, body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	secret := "jwt-secret"
	auth := AuthMiddleware(AuthConfig{APIKeyHash: string(hash), JWTSecret: secret})

	repo := candidateinfra.NewMemoryRepository()
	app := newApp(repo, nil, nil, auth)

	sign := func(method jwt.SigningMethod, key any, exp time.Time) string {
		tok, err := jwt.NewWithClaims(method, jwt.MapClaims{"sub": "ops", "exp": exp.Unix()}).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"valid api key", "X-API-Key", "s3cret-key", http.StatusOK},
		{"wrong api key", "X-API-Key", "guess", http.StatusUnauthorized},
		{"valid token", "Authorization", "Bearer " + sign(jwt.SigningMethodHS256, []byte(secret), time.Now().Add(time.Hour)), http.StatusOK},
		{"expired token", "Authorization", "Bearer " + sign(jwt.SigningMethodHS256, []byte(secret), time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"wrong secret", "Authorization", "Bearer " + sign(jwt.SigningMethodHS256, []byte("other"), time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"wrong scheme", "Authorization", "Basic abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/candidatures", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if status, body := do(t, app, req); status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
		})
	}

	// Service routes stay open.
	if status, _ := get(t, app, "/health"); status != http.StatusOK {
		t.Errorf("health behind auth: %d", status)
	}
}

func TestAuthMiddlewareDisabledWithoutCredentials(t *testing.T) {
	if AuthMiddleware(AuthConfig{}) != nil {
		t.Fatal("middleware should be disabled")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newApp(candidateinfra.NewMemoryRepository(), nil, nil, nil)
	get(t, app, "/candidatures")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "applyflow_http_requests_total") {
		t.Fatalf("metrics = %d\n%s", resp.StatusCode, body)
	}
}
