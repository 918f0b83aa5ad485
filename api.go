package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/brain"
	"github.com/sr-robotics/srcore/policy"
	"github.com/sr-robotics/srcore/safety"
)

// NewRouter builds the HTTP surface. JWT validation guards everything under
// /api except login; websocket and metrics routes stay open in debug mode
// so local tooling works without a token.
func NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login)

		r.Route("/", func(r chi.Router) {
			if !ENV.Debug {
				r.Use(ValidateJWT)
			}

			r.Get("/refresh_token", JWTRefresh)
			r.Get("/devices", ListDevices)
			r.Get("/devices/{id}", GetDevice)
			r.Get("/constraints", ListConstraints)
			r.Delete("/constraints/{name}", RemoveConstraint)
			r.Get("/events", ListEvents)
			r.Get("/watchdogs", ListWatchdogs)
			r.Post("/estop", PressEStop)
			r.Post("/say", Say)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		if !ENV.Debug {
			r.Use(ValidateJWT)
		}
		r.Get("/echo", EchoHandler)
		r.Get("/telemetry", TelemetryHandler)
	})

	r.Method("GET", "/metrics", ENV.Metrics.Handler())

	return r
}

// ListDevices reports the registered device ids.
func ListDevices(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string][]string{"devices": ENV.Reg.IDs()})
}

func GetDevice(w http.ResponseWriter, r *http.Request) {
	desc, ok := ENV.Reg.Get(chi.URLParam(r, "id"))
	if !ok {
		render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, desc)
}

type constraintView struct {
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

func ListConstraints(w http.ResponseWriter, r *http.Request) {
	constraints := ENV.Engine.Constraints()
	out := make([]constraintView, 0, len(constraints))
	for _, c := range constraints {
		out = append(out, constraintView{
			Name:        c.Name,
			Severity:    c.Severity.String(),
			Enabled:     c.Enabled,
			Description: c.Description,
		})
	}
	render.JSON(w, r, out)
}

func RemoveConstraint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ENV.Engine.Remove(name)
	auditEvent(safety.SafetyEvent{
		Timestamp: time.Now().UTC(),
		EventType: safety.EventConstraintUpdated,
		Message:   "constraint removed: " + name,
		Severity:  safety.SeverityWarning,
	})
	render.NoContent(w, r)
}

// ListEvents returns recent audit records, newest first. limit defaults
// to 50.
func ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			render.Render(w, r, ErrInvalidRequest(errors.New("limit must be a positive integer")))
			return
		}
		limit = n
	}

	if ENV.Audit == nil {
		render.JSON(w, r, []safety.AuditRecord{})
		return
	}
	recs, err := ENV.Audit.Recent(limit)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, recs)
}

func ListWatchdogs(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Dogs.CheckAll())
}

// PressEStop latches the software emergency stop. The watchdog sweep turns
// the latch into events and downstream halts.
func PressEStop(w http.ResponseWriter, r *http.Request) {
	ENV.EStop.Press()
	auditEvent(safety.SafetyEvent{
		Timestamp: time.Now().UTC(),
		EventType: safety.EventEmergencyStop,
		Message:   "emergency stop pressed via API",
		Severity:  safety.SeverityEmergency,
	})
	render.NoContent(w, r)
}

// auditEvent persists an API-originated safety event; persistence failures
// are logged, never surfaced to the client.
func auditEvent(ev safety.SafetyEvent) {
	if ENV.Audit == nil {
		return
	}
	if err := ENV.Audit.Append(ev); err != nil {
		ENV.Logger.Error("audit append failed", zap.Error(err))
	}
}

type sayPayload struct {
	Text string `json:"text"`
}

func (s *sayPayload) Bind(r *http.Request) error {
	if s.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type sayResponse struct {
	Kind       string    `json:"kind"`
	Confidence float64   `json:"confidence"`
	Gate       string    `json:"gate"`
	GateReason string    `json:"gate_reason,omitempty"`
	Values     []float64 `json:"values,omitempty"`
	FramesSent int       `json:"frames_sent"`
}

// Say runs one utterance through the command pipeline.
func Say(w http.ResponseWriter, r *http.Request) {
	data := &sayPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	out, err := ENV.Brain.HandleUtterance(r.Context(), data.Text, currentObservation())
	if err != nil && !errors.Is(err, brain.ErrNotSafe) {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	render.JSON(w, r, sayResponse{
		Kind:       out.Parsed.Action.Kind.String(),
		Confidence: out.Parsed.Confidence,
		Gate:       out.Gate.Status.String(),
		GateReason: out.Gate.Message,
		Values:     out.Action.Values,
		FramesSent: out.FramesSent,
	})
}

// currentObservation is a stub until state estimation lands; the gate still
// checks joint targets and workspace deltas against it.
// TODO: feed joint state from decoded telemetry instead of zeros.
func currentObservation() policy.Observation {
	return policy.Observation{
		JointPositions:  make([]float64, 6),
		JointVelocities: make([]float64, 6),
		EEPose:          []float64{0.3, 0, 0.5, 0, 0, 0},
		Timestamp:       float64(time.Now().UnixNano()) / 1e9,
	}
}
