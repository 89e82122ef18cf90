package routes

import (
	"net/http"

	h "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/handlers"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/middleware"
)

// NewRouter wires the status API. A nil batch handler leaves the run
// endpoints out.
func NewRouter(health *handlers.HealthHandler, jobs *handlers.JobHandler, batch *handlers.BatchHandler, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", health.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs/{jobID:[0-9]+}/execution", jobs.GetLatestExecution).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID:[0-9]+}/schedule", jobs.GetSchedule).Methods(http.MethodGet)

	if batch != nil {
		api.HandleFunc("/datasources/{datasrcID:[0-9]+}/run", batch.RunDataSource).Methods(http.MethodPost)
		api.HandleFunc("/batches", batch.RunBatch).Methods(http.MethodPost)
	}

	logged := middleware.LoggingMiddleware(logger)(router)
	return h.RecoveryHandler(h.PrintRecoveryStack(true))(logged)
}
