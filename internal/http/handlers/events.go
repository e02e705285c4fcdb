package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mealforge/internal/domain"
	"mealforge/internal/progress"
)

// subscribeRetry is how often a stream for a queued-but-unclaimed batch
// retries attaching to the in-memory progress state.
const subscribeRetry = time.Second

// BatchEvents streams batch progress as server-sent events. A subscriber
// always receives a snapshot first, so reconnecting clients can never
// miss the terminal event: either it arrives live or it is the snapshot.
func (a *App) BatchEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid batch id")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	events, cancel, err := a.Broker.Subscribe(id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.Logger.Error().Err(err).Str("batch_id", id.String()).Msg("handlers: subscribe failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to subscribe")
			return
		}
		// Not tracked in memory: either the batch is unknown, already
		// terminal past the retention window, or queued and not yet
		// claimed by a worker.
		batch, dbErr := a.Batches.GetByID(r.Context(), id)
		if dbErr != nil {
			if errors.Is(dbErr, domain.ErrNotFound) {
				a.error(w, http.StatusNotFound, "not_found", "batch not found")
				return
			}
			a.Logger.Error().Err(dbErr).Str("batch_id", id.String()).Msg("handlers: get batch for stream failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load batch")
			return
		}
		if batch.Status.Terminal() {
			startSSE(w)
			_ = writeEvent(w, flusher, terminalEventFromBatch(batch))
			return
		}

		events, cancel = a.waitForBatchState(w, r, flusher, batch)
		if events == nil {
			return
		}
	} else {
		startSSE(w)
	}
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, flusher, event); err != nil {
				return
			}
		}
	}
}

// waitForBatchState holds the stream open for a queued batch until a
// worker claims it and progress state appears. It emits an initial
// zero-progress event so the client learns the stream is live.
func (a *App) waitForBatchState(w http.ResponseWriter, r *http.Request, flusher http.Flusher, batch *domain.Batch) (<-chan progress.Event, func()) {
	startSSE(w)
	_ = writeEvent(w, flusher, progress.Event{
		Type:           progress.EventProgress,
		BatchID:        batch.ID.String(),
		TotalRequested: batch.RequestedCount,
		Phase:          string(batch.Status),
	})

	ticker := time.NewTicker(subscribeRetry)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return nil, nil
		case <-ticker.C:
			events, cancel, err := a.Broker.Subscribe(batch.ID)
			if err == nil {
				return events, cancel
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
		}
	}
}

func startSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event progress.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// terminalEventFromBatch reconstructs a terminal event from the persisted
// row after in-memory state has been retired.
func terminalEventFromBatch(batch *domain.Batch) progress.Event {
	return progress.Event{
		Type:           progress.TerminalFor(batch.Status),
		BatchID:        batch.ID.String(),
		TotalRequested: batch.RequestedCount,
		Error:          batch.ErrorMessage,
	}
}
