package placement

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/r3e-collective/dws-controlplane/internal/httputil"
	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
)

// wsUpgrader upgrades the instance-events stream. Origin checking is left to
// a fronting proxy, matching the rest of this admin surface's trust model.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler is the admin-facing HTTP surface for C7 (spec.md §6's wire
// protocol is node-facing; this is the operator surface that drives it —
// out of core scope per spec.md §1, carried so the engine is runnable, per
// the teacher's already-declared but otherwise unwired go-chi/chi).
type Handler struct {
	svc       *Service
	jwtSecret []byte
}

// NewHandler builds a chi.Router exposing deploy/stop/route endpoints.
// jwtSecret empty disables bearer validation (local/dev only).
func NewHandler(svc *Service, jwtSecret []byte) http.Handler {
	h := &Handler{svc: svc, jwtSecret: jwtSecret}
	r := chi.NewRouter()
	r.Use(h.authenticate)
	r.Post("/workloads", h.handleDeploy)
	r.Post("/workloads/{workloadID}/stop", h.handleStop)
	r.Post("/workloads/{workloadID}/invoke", h.handleInvoke)
	r.Get("/workloads/{workloadID}/events", h.handleEvents)
	return r
}

// handleEvents streams instance lifecycle transitions for one workload over
// a websocket connection (spec.md §4.6 instance lifecycle; node-facing
// invocation itself stays synchronous HTTP per handleInvoke below — this is
// the operator-facing tail -f equivalent).
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	workloadID := chi.URLParam(r, "workloadID")
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.svc.Subscribe(workloadID)
	defer cancel()

	for e := range events {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.Unauthorized(w, "missing bearer token")
			return
		}
		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apierr.Unauthorizedf("unexpected signing method %v", t.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			httputil.Unauthorized(w, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type deployHTTPRequest struct {
	Workload Workload `json:"workload"`
	Artifact []byte   `json:"artifact"` // base64 via encoding/json's []byte support
}

// writeServiceError maps the internal error taxonomy (apierr) to its
// conventional HTTP status (spec.md §7 propagation policy: core errors are
// not assumed to be HTTP-shaped, so the mapping lives at this boundary).
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *apierr.Error
	if errors.As(err, &svcErr) {
		httputil.WriteErrorWithCode(w, svcErr.HTTPStatus(), svcErr.Tag, svcErr.Error())
		return
	}
	httputil.InternalError(w, err.Error())
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployHTTPRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Deploy(r.Context(), req.Workload, req.Artifact)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workloadID")
	if err := h.svc.Stop(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "draining"})
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workloadID")
	maxConcurrency := httputil.QueryInt(r, "maxConcurrency", 10)
	timeout := 30 * time.Second

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "failed to read request body")
		return
	}

	var respBody []byte
	var respStatus int
	_, routeErr := h.svc.Route(r.Context(), id, maxConcurrency, func(inst Instance) (bool, time.Duration) {
		start := time.Now()
		node, getErr := h.svc.nodes.Get(context.Background(), inst.NodeID)
		if getErr != nil {
			return false, time.Since(start)
		}
		out, status, invokeErr := h.svc.node.Invoke(r.Context(), node.Endpoint, inst.ID, r.Method, r.Header, body, timeout)
		respBody, respStatus = out, status
		return invokeErr == nil && status < 500, time.Since(start)
	})
	if routeErr != nil {
		writeServiceError(w, routeErr)
		return
	}
	if respStatus == 0 {
		respStatus = http.StatusOK
	}
	w.WriteHeader(respStatus)
	_, _ = w.Write(respBody)
}
