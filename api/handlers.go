/*
handlers.go - HTTP API handlers for the medication dispenser backend

PURPOSE:
  Exposes the dispense engine via REST. Handles HTTP request/response and
  JSON, reads a consistent per-subject snapshot from the store, runs the pure
  engine, and applies the emitted delta. All engine invocations for one
  subject happen within a single request, so the read-compute-apply sequence
  is never interleaved with another writer for that subject.

ENDPOINTS:
  GET    /api/schedule?uid=           Reconcile and return the approaching schedule
  POST   /api/schedule/confirm        Confirm the pending dose taken
  DELETE /api/next-schedule?uid=      Clear the device pointer
  POST   /api/device-config           Write initial device flags
  POST   /api/history/reconcile       Prune orphaned ledger/stock entries
  GET    /api/reminders?email=        Send a caregiver reminder email

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing subject identifier, invalid email
  - 404: No active schedules, no approaching schedule, history not found
  - 429: Reminder cooldown active
  - 500: Store or delivery failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background sweep using the same reconcile path
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pillbox/dispense-engine/engine"
	"github.com/pillbox/dispense-engine/metrics"
	"github.com/pillbox/dispense-engine/notify"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    engine.Store
	Config   engine.Config
	Clock    engine.Clock
	Reminder *notify.Reminder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	reconciler *engine.Reconciler
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store engine.Store, cfg engine.Config, clock engine.Clock, reminder *notify.Reminder, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		Store:      store,
		Config:     cfg,
		Clock:      clock,
		Reminder:   reminder,
		Metrics:    m,
		Logger:     logger,
		reconciler: engine.NewReconciler(cfg, clock),
	}
}

// =============================================================================
// SCHEDULE CHECK - Reconcile and return the approaching schedule
// =============================================================================

// GetSchedule runs one full scheduling check for a subject and returns the
// schedule the device should be ready to dispense.
// GET /api/schedule?uid=
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(r.URL.Query().Get("uid"))
	if subject == "" {
		writeError(w, http.StatusBadRequest, "uid is required", engine.ErrMissingSubject)
		return
	}

	defs, err := h.ReconcileSubject(r.Context(), subject)
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveSchedules) {
			writeError(w, http.StatusNotFound, "no medicines found", nil)
			return
		}
		h.Logger.Error("schedule check failed", zap.String("subject", string(subject)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	approaching := engine.Approaching(defs, h.Clock.Now(), h.Config.Lookahead)
	if len(approaching) == 0 {
		writeError(w, http.StatusNotFound, "no approaching schedule", engine.ErrNoApproachingSchedule)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleDTO(approaching[0]))
}

// ReconcileSubject performs the per-subject scheduling check: prune stale
// stock keys, mark and reschedule missed doses, and bring the device pointer
// in line with the post-reconciliation ledger. Returns the active schedule
// definitions. The background scheduler shares this path with GetSchedule.
func (h *Handler) ReconcileSubject(ctx context.Context, subject engine.SubjectID) ([]engine.ScheduleDefinition, error) {
	started := time.Now()
	defer func() {
		h.Metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	}()

	defs, err := h.Store.ListSchedules(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		// Nothing to dispense: never leave a stale pointer behind.
		if err := h.Store.RemovePointer(ctx, subject); err != nil {
			h.Logger.Error("failed to remove pointer", zap.String("subject", string(subject)), zap.Error(err))
		}
		return nil, engine.ErrNoActiveSchedules
	}

	stockKeys, err := h.Store.ListStockKeys(ctx, subject)
	if err != nil {
		return nil, err
	}
	if stale := engine.PruneStock(defs, stockKeys); len(stale) > 0 {
		if err := h.Store.RemoveStockKeys(ctx, subject, stale); err != nil {
			return nil, err
		}
		h.Metrics.StockKeysPruned.Add(float64(len(stale)))
		h.Logger.Info("removed stale stock keys",
			zap.String("subject", string(subject)), zap.Strings("keys", stale))
	}

	ledger, err := h.Store.ListRecords(ctx, subject)
	if err != nil {
		return nil, err
	}
	pointer, err := h.Store.GetPointer(ctx, subject)
	if err != nil {
		return nil, err
	}

	snap := engine.SubjectSnapshot{
		Subject:   subject,
		Schedules: defs,
		Ledger:    ledger,
		Pointer:   pointer,
		StockKeys: stockKeys,
	}

	delta, err := h.reconciler.Reconcile(snap)
	if err != nil {
		return nil, err
	}
	if !delta.Empty() {
		if err := h.Store.ApplyDelta(ctx, subject, delta); err != nil {
			return nil, err
		}
		h.Metrics.DosesMissed.Add(float64(len(delta.Update)))
		h.Metrics.DosesRescheduled.Add(float64(len(delta.Insert)))
		h.Metrics.OrphansPruned.Add(float64(len(delta.Delete)))
	}

	op := engine.ResolvePointer(delta.Apply(ledger), pointer, h.Clock.Now(), h.Config.Location)
	if err := h.applyPointerOp(ctx, subject, op); err != nil {
		return nil, err
	}

	return defs, nil
}

func (h *Handler) applyPointerOp(ctx context.Context, subject engine.SubjectID, op engine.PointerOp) error {
	switch op.Action {
	case engine.PointerPublish:
		if err := h.Store.SetPointer(ctx, subject, *op.Pointer); err != nil {
			return err
		}
		h.Metrics.PointerPublishes.Inc()
		h.Logger.Info("published next schedule",
			zap.String("subject", string(subject)),
			zap.String("medicine", op.Pointer.MedicineName),
			zap.String("time", op.Pointer.Time))
	case engine.PointerClear:
		if err := h.Store.RemovePointer(ctx, subject); err != nil {
			return err
		}
		h.Metrics.PointerClears.Inc()
	default:
		h.Metrics.PointerUnchanged.Inc()
	}
	return nil
}

// =============================================================================
// DOSE CONFIRMATION
// =============================================================================

// ConfirmDose marks the approaching schedule's pending dose as taken and
// schedules the next cycle (or retires a one-time medicine).
// POST /api/schedule/confirm
func (h *Handler) ConfirmDose(w http.ResponseWriter, r *http.Request) {
	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required", engine.ErrMissingSubject)
		return
	}
	ctx := r.Context()
	subject := engine.SubjectID(req.UID)

	defs, err := h.Store.ListSchedules(ctx, subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if len(defs) == 0 {
		if err := h.Store.RemovePointer(ctx, subject); err != nil {
			h.Logger.Error("failed to remove pointer", zap.Error(err))
		}
		writeError(w, http.StatusNotFound, "no schedules found", nil)
		return
	}

	approaching := engine.Approaching(defs, h.Clock.Now(), h.Config.Lookahead)
	if len(approaching) == 0 {
		writeError(w, http.StatusNotFound, "no approaching schedule", engine.ErrNoApproachingSchedule)
		return
	}
	def := approaching[0]

	ledger, err := h.Store.ListRecords(ctx, subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	conf, err := engine.Confirm(def, ledger, h.Clock, h.Config.Location)
	if err != nil {
		if errors.Is(err, engine.ErrHistoryNotFound) {
			writeError(w, http.StatusNotFound, "history not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	if err := h.Store.ApplyDelta(ctx, subject, conf.Ledger); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	h.Metrics.DosesConfirmed.Inc()

	if conf.RetireSchedule {
		if err := h.retireSchedule(ctx, subject, def, conf.StockKey); err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error", err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "One-time medicine taken and cleaned up."})
		return
	}

	if conf.UpdatedSchedule != nil {
		if err := h.Store.PutSchedule(ctx, *conf.UpdatedSchedule); err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Medicine schedule updated"})
}

// retireSchedule removes every trace of a one-time medicine: its definition,
// its stock entry, and the device pointer.
func (h *Handler) retireSchedule(ctx context.Context, subject engine.SubjectID, def engine.ScheduleDefinition, stockKey string) error {
	if err := h.Store.DeleteSchedule(ctx, subject, def.MedicineName, def.MedicineDose); err != nil {
		return err
	}
	if err := h.Store.RemoveStockKeys(ctx, subject, []string{stockKey}); err != nil {
		return err
	}
	return h.Store.RemovePointer(ctx, subject)
}

// =============================================================================
// POINTER AND DEVICE CONFIG
// =============================================================================

// DeleteNextSchedule clears the device pointer explicitly.
// DELETE /api/next-schedule?uid=
func (h *Handler) DeleteNextSchedule(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(r.URL.Query().Get("uid"))
	if subject == "" {
		writeError(w, http.StatusBadRequest, "uid is required", engine.ErrMissingSubject)
		return
	}

	if err := h.Store.RemovePointer(r.Context(), subject); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	h.Metrics.PointerClears.Inc()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Next schedule deleted successfully"})
}

// InitDeviceConfig writes the default device flags for a freshly provisioned
// dispenser.
// POST /api/device-config
func (h *Handler) InitDeviceConfig(w http.ResponseWriter, r *http.Request) {
	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required", engine.ErrMissingSubject)
		return
	}

	if err := h.Store.SetDeviceConfig(r.Context(), engine.SubjectID(req.UID), engine.DefaultDeviceConfig()); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Configuration has been set successfully."})
}

// =============================================================================
// HISTORY MAINTENANCE
// =============================================================================

// ReconcileHistory prunes ledger entries and stock keys that no longer match
// an active schedule definition. Maintenance operation, invoked explicitly.
// POST /api/history/reconcile
func (h *Handler) ReconcileHistory(w http.ResponseWriter, r *http.Request) {
	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required", engine.ErrMissingSubject)
		return
	}
	ctx := r.Context()
	subject := engine.SubjectID(req.UID)

	defs, err := h.Store.ListSchedules(ctx, subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	ledger, err := h.Store.ListRecords(ctx, subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	report := engine.PartitionOrphans(defs, ledger)
	if delta := report.Delta(); !delta.Empty() {
		if err := h.Store.ApplyDelta(ctx, subject, delta); err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error", err)
			return
		}
		h.Metrics.OrphansPruned.Add(float64(len(delta.Delete)))
	}

	stockKeys, err := h.Store.ListStockKeys(ctx, subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	stale := engine.PruneStock(defs, stockKeys)
	if len(stale) > 0 {
		if err := h.Store.RemoveStockKeys(ctx, subject, stale); err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error", err)
			return
		}
		h.Metrics.StockKeysPruned.Add(float64(len(stale)))
	}

	writeJSON(w, http.StatusOK, OrphanReportDTO{
		Kept:      len(report.Kept),
		Deleted:   len(report.Deleted),
		NoHistory: report.NoHistory,
		StockKeys: stale,
	})
}

// =============================================================================
// REMINDERS
// =============================================================================

// SendReminder emails a dose reminder to a caregiver address, subject to the
// per-address cooldown.
// GET /api/reminders?email=
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))

	err := h.Reminder.Send(r.Context(), email)
	switch {
	case err == nil:
		h.Metrics.RemindersSent.Inc()
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Email sent successfully.", Email: email})
	case errors.Is(err, notify.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid or missing email", nil)
	default:
		var cooldown *notify.CooldownError
		if errors.As(err, &cooldown) {
			h.Metrics.RemindersThrottled.Inc()
			writeError(w, http.StatusTooManyRequests, cooldown.Error(), nil)
			return
		}
		h.Logger.Error("reminder delivery failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send email", nil)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
