// Command sample demonstrates the github.com/gantryhttp/gantry framework
// with a small contract-first users API guarded by a policy evaluator.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config config.yaml
//
// Then explore:
//
//	GET    http://localhost:8080/v1/health                — open, no policy
//	GET    http://localhost:8080/v1/users                 — any authenticated caller
//	POST   http://localhost:8080/v1/users                 — admins only
//	GET    http://localhost:8080/v1/users/{id}            — any authenticated caller
//	DELETE http://localhost:8080/v1/users/{id}            — admins only
//
// Pass a bearer token whose JWT subject starts with "admin" to hit the
// admin routes, e.g. sub "admin-alice".
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gantryhttp/gantry"
)

func main() {
	configFlag := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	var cfg gantry.Config
	if *configFlag != "" {
		var err error
		cfg, err = gantry.LoadConfig(*configFlag)
		if err != nil {
			slog.Error("config load failed", "err", err)
			os.Exit(1)
		}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	reg := gantry.NewRegistry()
	if err := registerRoutes(reg); err != nil {
		slog.Error("route registration failed", "err", err)
		os.Exit(1)
	}

	srv := gantry.NewServer(gantry.ServerConfig{
		Addr:           cfg.Addr,
		Registry:       reg,
		Evaluator:      gantry.EvaluatorFunc(evaluate),
		Cache:          cfg.CacheConfig(),
		RateLimit:      cfg.RateLimitConfig(),
		CORS:           &gantry.CORSConfig{},
		Debug:          cfg.Debug,
		DefaultTimeout: cfg.DefaultTimeout.Std(),
		DrainTimeout:   cfg.DrainTimeout.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server", "addr", cfg.Addr)

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

// evaluate is the demo policy: admin routes need a subject prefixed
// "admin", everything else needs any authenticated caller.
func evaluate(_ context.Context, in gantry.PolicyInput) (gantry.Decision, error) {
	allowed := true
	reason := "ok"

	if strings.HasPrefix(in.PolicyID, "admin") && !strings.HasPrefix(in.Identity.Subject, "admin") {
		allowed = false
		reason = "admin role required"
	}

	return gantry.Decision{
		Allowed:    allowed,
		Reason:     reason,
		ComputedAt: time.Now(),
		TTL:        30 * time.Second,
	}, nil
}

func registerRoutes(reg *gantry.Registry) error {
	userSchema := gantry.Object(map[string]*gantry.Schema{
		"name":  gantry.String(),
		"email": {Type: "string", Format: "email"},
		"role":  {Type: "string", Enum: []string{"admin", "member"}},
	}, "name", "email")

	memberAuth := gantry.AuthRequirement{PolicyID: "users.read", PolicyVersion: "v1", Mode: gantry.PolicyStrict}
	adminAuth := gantry.AuthRequirement{PolicyID: "admin.users.write", PolicyVersion: "v1", Mode: gantry.PolicyStrict}

	steps := []func() error{
		func() error {
			return reg.Get("/v1/health", "health", handleHealth)
		},
		func() error {
			return reg.Get("/v1/users", "users.list", handleListUsers,
				gantry.WithAuth(memberAuth),
				gantry.WithParam(gantry.ParamSchema{Source: "query", Name: "role", Schema: gantry.String()}),
			)
		},
		func() error {
			return reg.Post("/v1/users", "users.create", handleCreateUser,
				gantry.WithAuth(adminAuth),
				gantry.WithRequestSchema(userSchema),
				gantry.WithBodyLimit(64<<10),
			)
		},
		func() error {
			return reg.Get("/v1/users/{id}", "users.get", handleGetUser,
				gantry.WithAuth(memberAuth),
				gantry.WithParam(gantry.ParamSchema{Source: "path", Name: "id", Required: true, Schema: gantry.String()}),
			)
		},
		func() error {
			return reg.Delete("/v1/users/{id}", "users.delete", handleDeleteUser,
				gantry.WithAuth(adminAuth),
			)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

var store = &userStore{
	users: map[string]*User{
		"1": {ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin"},
		"2": {ID: "2", Name: "Bob", Email: "bob@example.com", Role: "member"},
	},
	nextID: 3,
}

type userStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	nextID int
}

func (s *userStore) list(role string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, *u)
	}
	return out
}

func (s *userStore) get(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *userStore) create(name, email, role string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{
		ID:    fmt.Sprintf("%d", s.nextID),
		Name:  name,
		Email: email,
		Role:  role,
	}
	s.nextID++
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *userStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

// User is the demo domain entity.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(_ context.Context, _ *gantry.RequestContext, _ *gantry.Request) (*gantry.Response, error) {
	return gantry.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func handleListUsers(_ context.Context, _ *gantry.RequestContext, req *gantry.Request) (*gantry.Response, error) {
	role := ""
	for q := req.RawQuery; q != ""; {
		var pair string
		pair, q, _ = strings.Cut(q, "&")
		if k, v, ok := strings.Cut(pair, "="); ok && k == "role" {
			role = v
		}
	}

	users := store.list(role)
	return gantry.JSON(http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

func handleCreateUser(_ context.Context, _ *gantry.RequestContext, req *gantry.Request) (*gantry.Response, error) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, gantry.Errorf(gantry.CodeInvalidRequest, "decode body: %v", err)
	}
	if in.Role == "" {
		in.Role = "member"
	}

	user := store.create(in.Name, in.Email, in.Role)
	return gantry.JSON(http.StatusCreated, user)
}

func handleGetUser(_ context.Context, rc *gantry.RequestContext, _ *gantry.Request) (*gantry.Response, error) {
	id, _ := rc.Params.Get("id")
	user, ok := store.get(id)
	if !ok {
		return nil, gantry.Errorf(gantry.CodeNotFound, "user %s not found", id)
	}
	return gantry.JSON(http.StatusOK, user)
}

func handleDeleteUser(_ context.Context, rc *gantry.RequestContext, _ *gantry.Request) (*gantry.Response, error) {
	id, _ := rc.Params.Get("id")
	if !store.delete(id) {
		return nil, gantry.Errorf(gantry.CodeNotFound, "user %s not found", id)
	}
	return gantry.NewResponse(http.StatusNoContent), nil
}
