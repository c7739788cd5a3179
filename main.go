package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/naviport/portaccess/controllers"
	"github.com/naviport/portaccess/database"
	"github.com/naviport/portaccess/middleware"
	"github.com/naviport/portaccess/repositories"
	"github.com/naviport/portaccess/services"
)

func main() {
	// Load environment variables from .env file, if present
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize database
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "portaccess.db"
	}
	if err := database.InitializeDatabase(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	// Get database connection
	db := database.GetDB()

	// Initialize repositories
	repos := repositories.NewRepositories(db)

	// Initialize services
	cfg := services.Config{
		BaseURL:    os.Getenv("BASE_URL"),
		AutoExpire: os.Getenv("REQUEST_AUTO_EXPIRE") == "true",
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	srvs := services.NewServices(repos, cfg)

	// Initialize controllers
	ctrl := controllers.NewControllers(srvs)

	// Set up router
	r := setupRouter(ctrl, repos)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("Port access service starting on port %s\n", port)
	fmt.Printf("Database: %s\n", dbPath)

	log.Fatal(http.ListenAndServe(":"+port, r))
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers, repos *repositories.Repositories) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.Metrics)
	r.Use(middleware.AuditLogger(repos.Audit))

	// PUBLIC ROUTES: the scanner endpoint needs no caller identity
	r.Get("/verify/{token}", ctrl.Authorizations.Verify)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "portaccess"}`)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/summary", ctrl.Dashboard.Summary)

	// Request lifecycle routes
	r.Route("/requests", func(r chi.Router) {
		r.Get("/", ctrl.Requests.List)
		r.Post("/", ctrl.Requests.Create)
		r.Get("/code/{code}", ctrl.Requests.GetByCode)
		r.Get("/{id}", ctrl.Requests.Get)
		r.Put("/{id}", ctrl.Requests.Update)
		r.Delete("/{id}", ctrl.Requests.Delete)

		r.Post("/{id}/submit", ctrl.Requests.Submit)
		r.Post("/{id}/assign", ctrl.Requests.Assign)
		r.Post("/{id}/review", ctrl.Requests.StartReview)
		r.Post("/{id}/approve", ctrl.Requests.Approve)
		r.Post("/{id}/reject", ctrl.Requests.Reject)
		r.Post("/{id}/request-documents", ctrl.Requests.RequestDocuments)
		r.Post("/{id}/resubmit", ctrl.Requests.ResubmitDocuments)
		r.Post("/{id}/priority", ctrl.Requests.ChangePriority)
		r.Post("/{id}/expire", ctrl.Requests.Expire)
		r.Post("/{id}/escalate", ctrl.Requests.Escalate)

		r.Get("/{id}/timeline", ctrl.Requests.Timeline)
		r.Post("/{id}/comments", ctrl.Requests.AddComment)
		r.Get("/{id}/documents", ctrl.Requests.Documents)
		r.Post("/{id}/documents", ctrl.Requests.AddDocument)
		r.Post("/{id}/documents/{docID}/verify", ctrl.Requests.VerifyDocument)
		r.Get("/{id}/escalations", ctrl.Requests.Escalations)
	})

	// Supervisor escalation routes
	r.Route("/escalations", func(r chi.Router) {
		r.Get("/", ctrl.Escalations.List)
		r.Get("/{id}", ctrl.Escalations.Get)
		r.Post("/{id}/review", ctrl.Escalations.StartReview)
		r.Post("/{id}/resolve", ctrl.Escalations.Resolve)
	})

	// Credential routes
	r.Route("/authorizations", func(r chi.Router) {
		r.Get("/", ctrl.Authorizations.List)
		r.Get("/{id}", ctrl.Authorizations.Get)
		r.Get("/{id}/credential", ctrl.Authorizations.Credential)
		r.Post("/{id}/revoke", ctrl.Authorizations.Revoke)
		r.Get("/{id}/access", ctrl.Authorizations.AccessLog)
		r.Get("/{id}/extensions", ctrl.Extensions.History)
		r.Post("/{id}/extensions", ctrl.Extensions.Create)
	})

	// Gate routes
	r.Post("/access/{token}", ctrl.Authorizations.RecordAccess)
	r.Post("/access/entries/{id}/discrepancies", ctrl.Authorizations.ReportDiscrepancy)

	// Discrepancy handling routes
	r.Route("/discrepancies", func(r chi.Router) {
		r.Get("/", ctrl.Authorizations.ListDiscrepancies)
		r.Post("/{id}/resolve", ctrl.Authorizations.ResolveDiscrepancy)
	})

	// Extension decision routes
	r.Route("/extensions", func(r chi.Router) {
		r.Get("/", ctrl.Extensions.List)
		r.Get("/{id}", ctrl.Extensions.Get)
		r.Post("/{id}/approve", ctrl.Extensions.Approve)
		r.Post("/{id}/reject", ctrl.Extensions.Reject)
	})

	return r
}
