package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/scenario"
	"github.com/iwvelando/espp-forecast/internal/timeline"
	"github.com/iwvelando/espp-forecast/internal/valuation"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/iwvelando/espp-forecast/pkg/currency"
	"go.uber.org/zap"
)

// Options tunes the handler. Zero values fall back to defaults.
type Options struct {
	Version        string
	MaxBodySize    int64
	AllowedOrigins []string
	Clock          animation.Clock
	Pacing         animation.Pacing
}

// Handler serves the simulator API over one shared scenario model and one
// shared animation.
type Handler struct {
	router      chi.Router
	logger      *zap.Logger
	version     string
	maxBodySize int64

	mu    sync.Mutex
	model *scenario.Model

	scheduler *animation.Scheduler
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewHandler constructs the HTTP handler. The handler owns model from here on.
func NewHandler(logger *zap.Logger, model *scenario.Model, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = constants.DefaultMaxBodySizeBytes
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Pacing == (animation.Pacing{}) {
		opts.Pacing = animation.DefaultPacing()
	}

	h := &Handler{
		logger:      logger,
		version:     version,
		maxBodySize: opts.MaxBodySize,
		model:       model,
	}
	h.runCtx, h.cancelRun = context.WithCancel(context.Background())
	h.scheduler = animation.New(logger, h.frames,
		animation.WithClock(opts.Clock),
		animation.WithPacing(opts.Pacing),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(newCORS(opts.AllowedOrigins).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)

		r.Get("/scenarios", h.handleScenarios)
		r.Put("/scenarios/{id}/valuation", h.handleSetValuation)

		r.Get("/config", h.handleConfig)
		r.Patch("/config", h.handleUpdateConfig)

		r.Put("/investment", h.handleSetInvestment)
		r.Put("/currency", h.handleSetCurrency)

		r.Get("/timeline", h.handleTimeline)

		r.Get("/animation", h.handleAnimation)
		r.Post("/animation/play", h.handlePlay)
		r.Post("/animation/stop", h.handleStop)
	})
	h.router = r

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Close stops any running animation.
func (h *Handler) Close() {
	h.cancelRun()
	h.scheduler.Stop()
}

func newCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug("request served",
			zap.String("op", "server.request"),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// frames is the animation's frame source. It reads the model under the lock
// so edits made during a run show up at the next step.
func (h *Handler) frames() []timeline.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model.Timeline()
}

type moneyView struct {
	Canonical float64 `json:"canonical"`
	Display   float64 `json:"display"`
	Formatted string  `json:"formatted"`
}

type scenarioView struct {
	scenario.Scenario
	DisplayValuation moneyView         `json:"displayValuation"`
	Outcome          valuation.Outcome `json:"outcome"`
	Net              moneyView         `json:"net"`
	Gross            moneyView         `json:"gross"`
	Tax              moneyView         `json:"tax"`
	ROI              string            `json:"roi"`
	AnnualizedReturn string            `json:"annualizedReturn"`
}

type scenariosResponse struct {
	Currency   currency.Code               `json:"currency"`
	Investment moneyView                   `json:"investment"`
	Config     valuation.TaxDilutionConfig `json:"config"`
	Scenarios  []scenarioView              `json:"scenarios"`
	Projection scenarioView                `json:"projection"`
}

type configResponse struct {
	Config valuation.TaxDilutionConfig `json:"config"`
	Limits limitsView                  `json:"limits"`
}

type limitsView struct {
	CapGainRate  [2]float64 `json:"capGainRate"`
	MarginalRate [2]float64 `json:"marginalRate"`
	Dilution     [2]float64 `json:"dilution"`
	HorizonYears [2]int     `json:"horizonYears"`
	Valuation    [2]float64 `json:"valuation"`
}

type timelineResponse struct {
	Step   int              `json:"step"`
	Frames []timeline.Frame `json:"frames"`
	HUD    timeline.HUD     `json:"hud"`
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *Handler) handleScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	resp := h.scenariosLocked()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetValuation(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSetValuation"
	var req struct {
		Valuation *float64 `json:"valuation"`
	}
	if !h.decode(w, r, &req, op) {
		return
	}
	if req.Valuation == nil {
		h.respondError(w, http.StatusBadRequest, "valuation is required", op)
		return
	}

	id := scenario.ID(chi.URLParam(r, "id"))
	h.mu.Lock()
	err := h.model.SetValuation(id, *req.Valuation)
	resp := h.scenariosLocked()
	h.mu.Unlock()

	if err != nil {
		h.respondModelError(w, err, op)
		return
	}
	h.logger.Info("scenario valuation updated",
		zap.String("op", op),
		zap.String("scenario", string(id)),
		zap.Float64("valuation", *req.Valuation),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	resp := h.configLocked()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUpdateConfig"
	var update scenario.ConfigUpdate
	if !h.decode(w, r, &update, op) {
		return
	}

	h.mu.Lock()
	err := h.model.SetConfig(update)
	resp := h.configLocked()
	h.mu.Unlock()

	if err != nil {
		h.respondModelError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetInvestment(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSetInvestment"
	var req struct {
		Amount *float64 `json:"amount"`
	}
	if !h.decode(w, r, &req, op) {
		return
	}
	if req.Amount == nil {
		h.respondError(w, http.StatusBadRequest, "amount is required", op)
		return
	}

	h.mu.Lock()
	err := h.model.SetInvestmentInDisplay(*req.Amount)
	resp := h.scenariosLocked()
	h.mu.Unlock()

	if err != nil {
		h.respondModelError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSetCurrency"
	var req struct {
		Currency string `json:"currency"`
	}
	if !h.decode(w, r, &req, op) {
		return
	}
	code, err := currency.ParseCode(req.Currency)
	if err != nil {
		h.respondModelError(w, err, op)
		return
	}

	h.mu.Lock()
	err = h.model.SetCurrency(code)
	resp := h.scenariosLocked()
	h.mu.Unlock()

	if err != nil {
		h.respondModelError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTimeline"
	step := constants.TimelineMonths
	if raw := r.URL.Query().Get("step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > constants.TimelineMonths {
			h.respondError(w, http.StatusBadRequest,
				fmt.Sprintf("step must be a whole number between 0 and %d", constants.TimelineMonths), op)
			return
		}
		step = n
	}

	frames := h.frames()
	h.writeJSON(w, http.StatusOK, timelineResponse{
		Step:   step,
		Frames: timeline.Reveal(frames, step),
		HUD:    timeline.NewHUD(frames, step, false),
	})
}

func (h *Handler) handleAnimation(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scheduler.Snapshot())
}

func (h *Handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.Start(h.runCtx) {
		h.writeJSON(w, http.StatusConflict, h.scheduler.Snapshot())
		return
	}
	h.writeJSON(w, http.StatusAccepted, h.scheduler.Snapshot())
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	h.writeJSON(w, http.StatusOK, h.scheduler.Snapshot())
}

func (h *Handler) scenariosLocked() scenariosResponse {
	code := h.model.Currency()
	outcomes := h.model.Outcomes()

	views := make([]scenarioView, 0, len(outcomes))
	var projection scenarioView
	for _, s := range h.model.Scenarios() {
		v := h.scenarioViewLocked(s, outcomes[s.ID], code)
		views = append(views, v)
		if s.ID == scenario.CurrentTrajectory {
			projection = v
		}
	}

	return scenariosResponse{
		Currency:   code,
		Investment: h.moneyLocked(h.model.Investment(), code, false),
		Config:     h.model.Config(),
		Scenarios:  views,
		Projection: projection,
	}
}

func (h *Handler) scenarioViewLocked(s scenario.Scenario, o valuation.Outcome, code currency.Code) scenarioView {
	return scenarioView{
		Scenario:         s,
		DisplayValuation: h.moneyLocked(s.Valuation, code, true),
		Outcome:          o,
		Net:              h.moneyLocked(o.NetValue, code, false),
		Gross:            h.moneyLocked(o.GrossValue, code, false),
		Tax:              h.moneyLocked(o.TotalTax, code, false),
		ROI:              strconv.FormatFloat(o.ROI, 'f', 2, 64) + "x",
		AnnualizedReturn: currency.FormatPercentage(o.AnnualizedReturn),
	}
}

func (h *Handler) moneyLocked(canonical float64, code currency.Code, compact bool) moneyView {
	cv := h.model.Converter()
	display, _ := cv.ToDisplay(canonical, code)
	formatted, _ := cv.Format(canonical, code, compact)
	return moneyView{Canonical: canonical, Display: display, Formatted: formatted}
}

func (h *Handler) configLocked() configResponse {
	l := h.model.Limits()
	return configResponse{
		Config: h.model.Config(),
		Limits: limitsView{
			CapGainRate:  [2]float64{l.MinCapGainRate, l.MaxCapGainRate},
			MarginalRate: [2]float64{l.MinMarginalRate, l.MaxMarginalRate},
			Dilution:     [2]float64{l.MinDilution, l.MaxDilution},
			HorizonYears: [2]int{l.MinHorizonYears, l.MaxHorizonYears},
			Valuation:    [2]float64{l.MinValuation, l.MaxValuation},
		},
	}
}

// decode reads a JSON body into dst, responding with 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large", op)
			return false
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), op)
		return false
	}
	return true
}

func (h *Handler) respondModelError(w http.ResponseWriter, err error, op string) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, scenario.ErrUnknownScenario):
		status = http.StatusNotFound
	case errors.Is(err, scenario.ErrScenarioFixed):
		status = http.StatusConflict
	}
	h.respondError(w, status, err.Error(), op)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Warn("request rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
