package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/growthdesk/internal/workflow"
)

var errUnknownOp = errors.New("unknown workflow operation")

// generatingOps are the workflow operations that issue a generation call.
var generatingOps = map[string]bool{
	string(workflow.OpSubmitInput):   true,
	string(workflow.OpApprove):       true,
	string(workflow.OpGenerateImage): true,
	string(workflow.OpRetry):         true,
}

// InputRequest is the body of POST /api/workflow/input.
type InputRequest struct {
	Details string `json:"details"`
}

// WorkflowError is returned when an operation is refused. The current
// snapshot is included so clients can resync.
type WorkflowError struct {
	Error    string            `json:"error"`
	Snapshot workflow.Snapshot `json:"snapshot"`
}

// GetWorkflow returns the current workflow snapshot.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, inst.Workflow.Snapshot())
}

// PostWorkflow dispatches one workflow operation. Generation failures are
// workflow state and come back as a FAILED snapshot with status 200.
func (h *Handler) PostWorkflow(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	op := workflow.Op(chi.URLParam(r, "op"))
	var req InputRequest
	if op == workflow.OpSubmitInput && !decodeBody(w, r, &req) {
		return
	}

	snap, err := dispatch(r.Context(), inst.Workflow, op, req.Details)

	var verr *workflow.ValidationError
	switch {
	case errors.Is(err, errUnknownOp):
		Error(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, WorkflowError{Error: verr.Message, Snapshot: inst.Workflow.Snapshot()})
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrInvalidTransition):
		JSON(w, http.StatusConflict, WorkflowError{Error: err.Error(), Snapshot: inst.Workflow.Snapshot()})
	default:
		JSON(w, http.StatusOK, snap)
	}
}

func dispatch(ctx context.Context, wf *workflow.Workflow, op workflow.Op, details string) (workflow.Snapshot, error) {
	switch op {
	case workflow.OpSubmitInput:
		return wf.SubmitInput(ctx, details)
	case workflow.OpApprove:
		return wf.ApproveContent(ctx)
	case workflow.OpReject:
		return wf.RejectContent()
	case workflow.OpEdit:
		return wf.RequestEdit()
	case workflow.OpGenerateImage:
		return wf.GenerateImage(ctx)
	case workflow.OpRetry:
		return wf.Retry(ctx)
	case workflow.OpReset:
		return wf.Reset()
	default:
		return workflow.Snapshot{}, errUnknownOp
	}
}
