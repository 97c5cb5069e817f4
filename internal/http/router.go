package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

const putawayPrefix = "/putaway/api/v1/"

// Router thin wrapper over http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterHealthRoutes liveness probe
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/health", method(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}))
}

// RegisterPutawayRoutes mounts the put-away endpoints
func (r *Router) RegisterPutawayRoutes(h *PutawayHandler) {
	// movements
	r.Handle(putawayPrefix+"movements", method(http.MethodPost, h.SubmitMovement))
	r.Handle(putawayPrefix+"movements/cancel", method(http.MethodPost, h.CancelMovement))
	r.Handle(putawayPrefix+"movements/reversal", method(http.MethodPost, h.ReverseMovement))

	// process window
	r.Handle(putawayPrefix+"process/reset", method(http.MethodPost, h.ResetProcess))
	r.Handle(putawayPrefix+"process/complete", method(http.MethodPost, h.CompleteProcess))
	r.Handle(putawayPrefix+"process/end-log", method(http.MethodPost, h.EndLog))
	r.Handle(putawayPrefix+"process/operator-finish", method(http.MethodPost, h.FinishOperator))
	r.Handle(putawayPrefix+"process/operator", method(http.MethodPost, h.AssignOperator))
	r.Handle(putawayPrefix+"process/open-operators", method(http.MethodGet, h.OpenOperators))

	// shipment lines
	r.Handle(putawayPrefix+"lines/import", method(http.MethodPost, h.ImportLines))
	r.Handle(putawayPrefix+"lines/missing", method(http.MethodGet, h.MissingLines))

	// item
	r.Handle(putawayPrefix+"item", method(http.MethodGet, h.GetItem))
	r.Handle(putawayPrefix+"item/audit", method(http.MethodGet, h.AuditItem))
}
