package workflow

import "github.com/ashureev/growthdesk/internal/domain"

// StageName identifies a workflow state.
type StageName string

const (
	StageInput          StageName = "INPUT"
	StageContentPending StageName = "CONTENT_PENDING"
	StageContentReview  StageName = "CONTENT_REVIEW"
	StagePromptPending  StageName = "PROMPT_PENDING"
	StagePromptReview   StageName = "PROMPT_REVIEW"
	StageImagePending   StageName = "IMAGE_PENDING"
	StageImageReady     StageName = "IMAGE_READY"
	StageFailed         StageName = "FAILED"
)

// Approval is the state of the content approval gate.
type Approval string

const (
	ApprovalNone     Approval = ""
	ApprovalPending  Approval = "PENDING"
	ApprovalApproved Approval = "APPROVED"
	ApprovalRejected Approval = "REJECTED"
)

// Stage is one workflow state. Each implementation carries only the
// artifacts that may exist in that state.
type Stage interface {
	Name() StageName
	Approval() Approval
	isStage()
}

// Input waits for business details. Rejected is set after RejectContent
// until the next submission.
type Input struct {
	Rejected bool
}

// ContentPending waits for the drafted post.
type ContentPending struct {
	Details string
	// Previous is the draft being replaced after an edit request.
	Previous string
	// Revision is the revision of Previous, zero for a first draft.
	Revision int
}

// ContentReview holds a draft awaiting the approval gate.
type ContentReview struct {
	Details string
	Draft   string
	// Editing is set by RequestEdit; the draft stays until the next submission.
	Editing bool
	// Revision counts drafts produced since the last reset, starting at 1.
	Revision int
	// Changes is the line diff against the previous draft, if any.
	Changes []DraftLine
}

// PromptPending waits for the image prompts of an approved draft.
type PromptPending struct {
	Details  string
	Draft    string
	Revision int
}

// PromptReview holds the prompt pair for an approved draft.
type PromptReview struct {
	Details  string
	Draft    string
	Revision int
	Prompts  domain.PromptPair
}

// ImagePending waits for the rendered image.
type ImagePending struct {
	Details  string
	Draft    string
	Revision int
	Prompts  domain.PromptPair
}

// ImageReady is terminal until Reset.
type ImageReady struct {
	Details  string
	Draft    string
	Revision int
	Prompts  domain.PromptPair
	Image    []byte
}

// Failed records a generation failure. Pending is the state whose call
// failed; Retry re-enters it.
type Failed struct {
	Pending Stage
	Message string
	Err     error
}

func (Input) Name() StageName          { return StageInput }
func (ContentPending) Name() StageName { return StageContentPending }
func (ContentReview) Name() StageName  { return StageContentReview }
func (PromptPending) Name() StageName  { return StagePromptPending }
func (PromptReview) Name() StageName   { return StagePromptReview }
func (ImagePending) Name() StageName   { return StageImagePending }
func (ImageReady) Name() StageName     { return StageImageReady }
func (Failed) Name() StageName         { return StageFailed }

func (s Input) Approval() Approval {
	if s.Rejected {
		return ApprovalRejected
	}
	return ApprovalNone
}
func (ContentPending) Approval() Approval { return ApprovalNone }
func (ContentReview) Approval() Approval  { return ApprovalPending }
func (PromptPending) Approval() Approval  { return ApprovalApproved }
func (PromptReview) Approval() Approval   { return ApprovalApproved }
func (ImagePending) Approval() Approval   { return ApprovalApproved }
func (ImageReady) Approval() Approval     { return ApprovalApproved }

// Approval of a failed prompt call is rolled back to pending.
func (f Failed) Approval() Approval {
	switch f.Pending.(type) {
	case PromptPending:
		return ApprovalPending
	case ImagePending:
		return ApprovalApproved
	default:
		return ApprovalNone
	}
}

// FailedStage returns the name of the state whose call failed.
func (f Failed) FailedStage() StageName {
	if f.Pending == nil {
		return ""
	}
	return f.Pending.Name()
}

func (Input) isStage()          {}
func (ContentPending) isStage() {}
func (ContentReview) isStage()  {}
func (PromptPending) isStage()  {}
func (PromptReview) isStage()   {}
func (ImagePending) isStage()   {}
func (ImageReady) isStage()     {}
func (Failed) isStage()         {}

// IsPending reports whether s waits on a generation call.
func IsPending(s Stage) bool {
	switch s.(type) {
	case ContentPending, PromptPending, ImagePending:
		return true
	default:
		return false
	}
}
