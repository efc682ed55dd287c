package mixer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the operator API using go-chi.
type Handler struct {
	conn  *Connection
	rec   *Reconciler
	sched *Scheduler
	disp  *Dispatcher
	log   *slog.Logger
}

// NewHandler returns a Handler over the application state.
func NewHandler(conn *Connection, rec *Reconciler, sched *Scheduler, disp *Dispatcher, log *slog.Logger) *Handler {
	return &Handler{conn: conn, rec: rec, sched: sched, disp: disp, log: log}
}

// Mount registers the operator routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Post("/refresh", h.Refresh)
	r.Put("/connection", h.UpdateConnection)
	r.Put("/refresh-policy", h.UpdatePolicy)
	r.Post("/transitions/{kind}", h.Transition)
	r.Route("/inputs/{input}", func(r chi.Router) {
		r.Post("/preview", h.SetPreview)
		r.Post("/program", h.SetProgram)
	})
	r.Route("/audio", func(r chi.Router) {
		r.Post("/inputs/{key}/toggle", h.ToggleAudio)
		r.Put("/inputs/{key}/volume", h.SetVolume)
		r.Post("/master/toggle", h.ToggleMasterMute)
		r.Put("/master/volume", h.SetMasterVolume)
	})
	r.Post("/overlays/{index}/toggle", h.ToggleOverlay)
}

// State builds the current payload.
func (h *Handler) State() StatePayload {
	return NewStatePayload(h.rec.State(), h.sched.Policy(), h.conn.Get())
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.State())
}

// Refresh handles POST /refresh. A refresh already in flight makes this a
// no-op reported as started=false.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	started := h.sched.RefreshNow(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

// UpdateConnection handles PUT /connection. A changed base address is
// followed by a refresh against the new address.
func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var u ConnectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		h.log.Debug("invalid connection body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	cfg, changed := h.conn.Apply(u)
	if changed {
		h.log.Info("mixer address changed", slog.String("base_url", cfg.BaseURL()))
		h.sched.Converge(context.WithoutCancel(r.Context()))
	}
	writeJSON(w, http.StatusOK, h.State())
}

// UpdatePolicy handles PUT /refresh-policy.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var u PolicyUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		h.log.Debug("invalid policy body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	p, err := h.sched.ApplyPolicy(u)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Info("refresh policy updated",
		slog.Bool("auto_refresh", p.AutoRefresh),
		slog.Int("interval_ms", p.IntervalMs))
	writeJSON(w, http.StatusOK, p)
}

// Transition handles POST /transitions/{kind} for take, auto and fade.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var err error
	switch chi.URLParam(r, "kind") {
	case "take":
		err = h.disp.Take(r.Context())
	case "auto":
		err = h.disp.Auto(r.Context())
	case "fade":
		err = h.disp.Fade(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown transition")
		return
	}
	h.commandResult(w, err)
}

// SetPreview handles POST /inputs/{input}/preview.
func (h *Handler) SetPreview(w http.ResponseWriter, r *http.Request) {
	in, ok := FindInput(h.rec.Snapshot(), chi.URLParam(r, "input"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrInputNotFound.Error())
		return
	}
	h.commandResult(w, h.disp.SetPreview(r.Context(), in))
}

// SetProgram handles POST /inputs/{input}/program.
func (h *Handler) SetProgram(w http.ResponseWriter, r *http.Request) {
	in, ok := FindInput(h.rec.Snapshot(), chi.URLParam(r, "input"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrInputNotFound.Error())
		return
	}
	h.commandResult(w, h.disp.SetProgram(r.Context(), in))
}

// ToggleAudio handles POST /audio/inputs/{key}/toggle.
func (h *Handler) ToggleAudio(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.channel(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrInputNotFound.Error())
		return
	}
	h.commandResult(w, h.disp.ToggleAudio(r.Context(), ch))
}

type volumeBody struct {
	Value *float64 `json:"value"`
}

// SetVolume handles PUT /audio/inputs/{key}/volume with {"value": n}.
func (h *Handler) SetVolume(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.channel(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrInputNotFound.Error())
		return
	}
	v, ok := h.decodeVolume(w, r)
	if !ok {
		return
	}
	h.commandResult(w, h.disp.SetVolume(r.Context(), ch, v))
}

// ToggleMasterMute handles POST /audio/master/toggle.
func (h *Handler) ToggleMasterMute(w http.ResponseWriter, r *http.Request) {
	h.commandResult(w, h.disp.ToggleMasterMute(r.Context()))
}

// SetMasterVolume handles PUT /audio/master/volume with {"value": n}.
func (h *Handler) SetMasterVolume(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decodeVolume(w, r)
	if !ok {
		return
	}
	h.commandResult(w, h.disp.SetMasterVolume(r.Context(), v))
}

// ToggleOverlay handles POST /overlays/{index}/toggle.
func (h *Handler) ToggleOverlay(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidOverlay.Error())
		return
	}
	h.commandResult(w, h.disp.ToggleOverlay(r.Context(), index))
}

func (h *Handler) channel(key string) (AudioChannel, bool) {
	if key == "" {
		return AudioChannel{}, false
	}
	return BuildViewModel(h.rec.Snapshot()).Channel(key)
}

func (h *Handler) decodeVolume(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var body volumeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return 0, false
	}
	if *body.Value < 0 || *body.Value > 100 {
		writeError(w, http.StatusBadRequest, "value must be between 0 and 100")
		return 0, false
	}
	return *body.Value, true
}

func (h *Handler) commandResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrInvalidOverlay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// FindInput resolves an operator reference to an input: a key match first,
// then the numeric index.
func FindInput(s StatusSnapshot, ref string) (InputSnapshot, bool) {
	if ref == "" {
		return InputSnapshot{}, false
	}
	for _, in := range s.Inputs {
		if in.Key == ref {
			return in, true
		}
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return InputSnapshot{}, false
	}
	for _, in := range s.Inputs {
		if in.Number == n {
			return in, true
		}
	}
	return InputSnapshot{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
