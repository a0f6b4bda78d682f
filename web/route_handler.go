// Package web serves the operator API of a scheduler process: manual
// triggers, execution history and job pause/resume.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alecthomas/types/optional"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/logging"
	"github.com/RezaEskandarii/cronfire/internal/state"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/types"
)

// Trigger runs a job immediately. *client.Scheduler implements it.
type Trigger interface {
	TriggerJob(ctx context.Context, jobID, userID string) (*types.JobExecution, error)
}

type HttpRouteHandler struct {
	jobStore  store.JobStore
	trigger   Trigger
	secretKey string
	addr      string
	log       zerolog.Logger
}

func NewRouteHandler(jobStore store.JobStore, trigger Trigger, secretKey, addr string, log zerolog.Logger) *HttpRouteHandler {
	return &HttpRouteHandler{
		jobStore:  jobStore,
		trigger:   trigger,
		secretKey: secretKey,
		addr:      addr,
		log:       logging.Component(log, "web"),
	}
}

// Handler returns the routes. Everything except /healthz requires a token
// when a secret key is configured.
func (handler *HttpRouteHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /jobs/{id}", authMiddleware(handler.secretKey, handler.handleGetJob))
	mux.HandleFunc("GET /jobs/{id}/executions", authMiddleware(handler.secretKey, handler.handleExecutions))
	mux.HandleFunc("POST /jobs/{id}/trigger", authMiddleware(handler.secretKey, handler.handleTrigger))
	mux.HandleFunc("POST /jobs/{id}/status", authMiddleware(handler.secretKey, handler.handleChangeStatus))
	return mux
}

// Serve listens until ctx is cancelled, then shuts the server down.
func (handler *HttpRouteHandler) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              handler.addr,
		Handler:           handler.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		handler.log.Info().Str("addr", handler.addr).Msg("operator api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (handler *HttpRouteHandler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := handler.jobStore.GetJob(r.Context(), r.PathValue("id"), getUserID(r))
	if err != nil {
		handler.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (handler *HttpRouteHandler) handleExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, userID := r.PathValue("id"), getUserID(r)

	if _, err := handler.jobStore.GetJob(ctx, jobID, userID); err != nil {
		handler.storeError(w, err)
		return
	}
	executions, err := handler.jobStore.GetJobExecutions(ctx, jobID, userID, getLimit(r))
	if err != nil {
		handler.storeError(w, err)
		return
	}
	if executions == nil {
		executions = []*types.JobExecution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

func (handler *HttpRouteHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	execution, err := handler.trigger.TriggerJob(r.Context(), r.PathValue("id"), getUserID(r))
	if err != nil {
		handler.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (handler *HttpRouteHandler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, userID := r.PathValue("id"), getUserID(r)

	var target state.JobStatus
	switch r.URL.Query().Get("action") {
	case "pause":
		target = state.StatusPaused
	case "resume":
		target = state.StatusActive
	default:
		writeError(w, http.StatusBadRequest, "action must be pause or resume")
		return
	}

	job, err := handler.jobStore.GetJob(ctx, jobID, userID)
	if err != nil {
		handler.storeError(w, err)
		return
	}
	if !state.IsValidTransition(job.Status, target) {
		writeError(w, http.StatusConflict, "cannot move job from "+job.Status.String()+" to "+target.String())
		return
	}
	if err := handler.jobStore.UpdateJob(ctx, jobID, userID, types.JobUpdate{Status: optional.Some(target)}); err != nil {
		handler.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": jobID, "status": target.String()})
}

func (handler *HttpRouteHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, custom_errors.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	handler.log.Error().Err(err).Msg("operator api request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
