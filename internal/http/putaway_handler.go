package httpapi

import (
	"net/http"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/service"

	"go.uber.org/zap"
)

// PutawayHandler JSON adapter over service.PutawayService
type PutawayHandler struct {
	svc    service.PutawayService
	logger *zap.Logger
}

func NewPutawayHandler(svc service.PutawayService, logger *zap.Logger) *PutawayHandler {
	return &PutawayHandler{svc: svc, logger: logger}
}

type entryRequest struct {
	ID int64 `json:"id"`
}

// fillFromQuery accepts ?id= when the body carries none
func (e *entryRequest) fillFromQuery(r *http.Request) {
	if e.ID != 0 {
		return
	}
	if id, ok := parseInt64(r.URL.Query().Get("id")); ok {
		e.ID = id
	}
}

type pairRequest struct {
	Reference string `json:"reference"`
	Waybill   string `json:"waybill"`
}

type operatorRequest struct {
	Reference  string `json:"reference"`
	Waybill    string `json:"waybill"`
	UserID     string `json:"userId"`
	OperatorID string `json:"operatorId"`
}

type importRequest struct {
	Lines []service.ShipmentLine `json:"lines"`
}

// statusFor maps an error kind to the HTTP status
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindLogicalState:
		return http.StatusConflict
	case domain.KindConcurrency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *PutawayHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("putaway request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, FailWith(err))
}

// decode reads the body; a malformed body is a validation failure
func (h *PutawayHandler) decode(w http.ResponseWriter, r *http.Request, op string, out any) bool {
	if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
		h.fail(w, r, domain.NewValidationError(op, "invalid request body: "+err.Error()))
		return false
	}
	return true
}

func keyFromQuery(r *http.Request) domain.AggregateKey {
	q := r.URL.Query()
	return domain.AggregateKey{
		Reference:  q.Get("reference"),
		Waybill:    q.Get("waybill"),
		PartNumber: q.Get("partNumber"),
	}
}

// SubmitMovement POST /putaway/api/v1/movements
func (h *PutawayHandler) SubmitMovement(w http.ResponseWriter, r *http.Request) {
	var req service.MovementSubmission
	if !h.decode(w, r, "submit", &req) {
		return
	}
	res, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// CancelMovement POST /putaway/api/v1/movements/cancel
func (h *PutawayHandler) CancelMovement(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !h.decode(w, r, "cancel", &req) {
		return
	}
	req.fillFromQuery(r)
	res, err := h.svc.Cancel(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// ReverseMovement POST /putaway/api/v1/movements/reversal
func (h *PutawayHandler) ReverseMovement(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !h.decode(w, r, "reverse", &req) {
		return
	}
	req.fillFromQuery(r)
	res, err := h.svc.Reverse(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// ResetProcess POST /putaway/api/v1/process/reset
func (h *PutawayHandler) ResetProcess(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !h.decode(w, r, "reset process window", &req) {
		return
	}
	res, err := h.svc.ResetProcessWindow(r.Context(), req.Reference, req.Waybill)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// CompleteProcess POST /putaway/api/v1/process/complete
func (h *PutawayHandler) CompleteProcess(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !h.decode(w, r, "complete process window", &req) {
		return
	}
	res, err := h.svc.CompleteProcessWindow(r.Context(), req.Reference, req.Waybill)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// EndLog POST /putaway/api/v1/process/end-log
func (h *PutawayHandler) EndLog(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if !h.decode(w, r, "complete operator window", &req) {
		return
	}
	res, err := h.svc.CompleteOperatorWindow(r.Context(), req.Reference, req.Waybill, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// FinishOperator POST /putaway/api/v1/process/operator-finish
func (h *PutawayHandler) FinishOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if !h.decode(w, r, "finish operator", &req) {
		return
	}
	res, err := h.svc.FinishOperator(r.Context(), req.Reference, req.Waybill, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// AssignOperator POST /putaway/api/v1/process/operator
func (h *PutawayHandler) AssignOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if !h.decode(w, r, "assign operator", &req) {
		return
	}
	res, err := h.svc.AssignOperator(r.Context(), req.Reference, req.Waybill, req.OperatorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// OpenOperators GET /putaway/api/v1/process/open-operators?reference=&waybill=
func (h *PutawayHandler) OpenOperators(w http.ResponseWriter, r *http.Request) {
	k := keyFromQuery(r)
	ids, err := h.svc.OpenOperators(r.Context(), k.Reference, k.Waybill)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, Ok(ids))
}

// ImportLines POST /putaway/api/v1/lines/import
func (h *PutawayHandler) ImportLines(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, "import shipment lines", &req) {
		return
	}
	res, err := h.svc.ImportShipmentLines(r.Context(), req.Lines)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// MissingLines GET /putaway/api/v1/lines/missing?reference=&waybill=
func (h *PutawayHandler) MissingLines(w http.ResponseWriter, r *http.Request) {
	k := keyFromQuery(r)
	res, err := h.svc.CheckMissing(r.Context(), k.Reference, k.Waybill)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// GetItem GET /putaway/api/v1/item?reference=&waybill=&partNumber=
func (h *PutawayHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	agg, err := h.svc.Lookup(r.Context(), keyFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(agg))
}

// AuditItem GET /putaway/api/v1/item/audit?reference=&waybill=&partNumber=
func (h *PutawayHandler) AuditItem(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Audit(r.Context(), keyFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
