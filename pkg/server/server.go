package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/uifoundry/registry-studio/pkg/analytics"
	"github.com/uifoundry/registry-studio/pkg/audit"
	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/cache"
	"github.com/uifoundry/registry-studio/pkg/export"
	"github.com/uifoundry/registry-studio/pkg/github"
	"github.com/uifoundry/registry-studio/pkg/importer"
	"github.com/uifoundry/registry-studio/pkg/jobs"
	"github.com/uifoundry/registry-studio/pkg/registry"
)

// Server wires together the studio's stores, services, and HTTP routes.
type Server struct {
	cfg        *Config
	store      *registry.Store
	jobStore   *jobs.JobStore
	analytics  *analytics.Store
	auditStore *audit.AuditStore
	auditCfg   *audit.AuditConfig
	exportSvc  *export.Service
	importer   *importer.Importer
	caches     *cache.Manager
	logger     *slog.Logger
}

// New constructs a Server from configuration and an open database handle.
// The caller is responsible for running migrations before serving.
func New(cfg *Config, db *gorm.DB, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := registry.NewStore(db)
	jobStore := jobs.NewJobStore(db)
	analyticsStore := analytics.NewStore(db)

	var ghOpts []github.Option
	if cfg.Github.APIURL != "" {
		ghOpts = append(ghOpts, github.WithAPIURL(cfg.Github.APIURL))
	}
	ghClient := github.NewClient(cfg.Github.Token, ghOpts...)

	exportSvc := export.NewService(store, ghClient, export.NewPushLocker(db), logger)
	imp := importer.NewImporter(store, &importer.GitCloner{}, logger)

	caches := cache.NewManager(cache.ConfigFromEnv())

	return &Server{
		cfg:        cfg,
		store:      store,
		jobStore:   jobStore,
		analytics:  analyticsStore,
		auditStore: audit.NewAuditStore(db),
		auditCfg:   audit.AuditConfigFromEnv(),
		exportSvc:  exportSvc,
		importer:   imp,
		caches:     caches,
		logger:     logger,
	}, nil
}

// Migrate runs schema migrations for all stores.
func (s *Server) Migrate() error {
	if err := s.store.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	if err := s.jobStore.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate job schema: %w", err)
	}
	if err := s.auditStore.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// AuditStore exposes the audit store, mainly for the retention worker.
func (s *Server) AuditStore() *audit.AuditStore { return s.auditStore }

// AuditConfig exposes the resolved audit configuration.
func (s *Server) AuditConfig() *audit.AuditConfig { return s.auditCfg }

// Store exposes the registry store, mainly for the server binary to share
// it with background components.
func (s *Server) Store() *registry.Store { return s.store }

// JobStore exposes the sync job store.
func (s *Server) JobStore() *jobs.JobStore { return s.jobStore }

// identityMiddleware builds the identity middleware selected by the auth
// config.
func (s *Server) identityMiddleware() (func(http.Handler) http.Handler, error) {
	switch s.cfg.Auth.Mode {
	case "jwt":
		return authz.NewJWTIdentityMiddleware(authz.JWTConfig{
			UserClaim:     s.cfg.Auth.UserClaim,
			PublicKeyPath: s.cfg.Auth.PublicKeyPath,
			Issuer:        s.cfg.Auth.Issuer,
			Audience:      s.cfg.Auth.Audience,
			Logger:        s.logger,
		})
	default:
		return authz.HeaderIdentityMiddleware(), nil
	}
}

// Router assembles the full HTTP handler: the authenticated /api/v1
// surface and the public /catalog surface.
func (s *Server) Router() (chi.Router, error) {
	identity, err := s.identityMiddleware()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(s.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Remote-User"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(identity)
		api.Use(audit.Middleware(s.auditStore, s.auditCfg, s.logger))
		api.Use(s.invalidateOnMutation)

		api.Mount("/registries", registry.Router(s.store,
			export.Routes(s.exportSvc, s.store),
			func(r chi.Router) {
				r.Get("/analytics", analytics.Handler(s.analytics, s.store))
			},
		))
		api.Post("/import", importer.ImportHandler(s.importer))
		api.Mount("/jobs", jobs.Router(s.jobStore, s.store))
		api.Mount("/audit", audit.Router(s.auditStore))
	})

	r.Route("/catalog", func(cat chi.Router) {
		cat.With(s.caches.ListingMiddleware()).Get("/", s.handleCatalogListing)
		cat.With(s.caches.ScaffoldMiddleware()).Get("/{ownerId}/{slug}/*", s.handleCatalogFile)
		cat.Get("/{ownerId}/{slug}", s.redirectCatalogIndex)
	})

	return r, nil
}

// invalidateOnMutation drops cached catalog responses after a successful
// write through the API. Writes scoped to one registry evict only that
// registry's scaffold entries; everything else flushes both caches.
func (s *Server) invalidateOnMutation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		// Resolve owner and slug before the handler runs: a DELETE
		// removes the row. URL params are not routed yet at this point,
		// so the registry id comes from the raw path.
		var owner, slug string
		if registryID := mutatedRegistryID(r.URL.Path); registryID != "" {
			if reg, err := s.store.GetRegistry(registryID); err == nil && reg != nil {
				owner, slug = reg.OwnerID, reg.Slug
			}
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= 400 {
			return
		}
		if owner != "" {
			s.caches.InvalidateRegistry(owner, slug)
		} else {
			s.caches.InvalidateAll()
		}
	})
}

// mutatedRegistryID extracts the registry id from an API mutation path of
// the form /api/v1/registries/{registryId}/... Returns "" for other paths.
func mutatedRegistryID(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/registries/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
