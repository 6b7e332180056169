package workflow

import "github.com/ashureev/growthdesk/internal/domain"

// PromptView is the presentation form of a prompt pair.
type PromptView struct {
	ImagePrompt    string `json:"imagePrompt"`
	NegativePrompt string `json:"negativePrompt"`
	HasNegative    bool   `json:"hasNegative"`
}

func newPromptView(p domain.PromptPair) *PromptView {
	if p.IsEmpty() {
		return nil
	}
	return &PromptView{
		ImagePrompt:    p.ImagePrompt,
		NegativePrompt: p.NegativeOrNA(),
		HasNegative:    p.HasNegative(),
	}
}

// Snapshot is a read-only view of a workflow for presentation.
type Snapshot struct {
	Instance    string      `json:"instance"`
	Version     uint64      `json:"version"`
	Stage       StageName   `json:"stage"`
	Approval    Approval    `json:"approval,omitempty"`
	Busy        bool        `json:"busy"`
	Details     string      `json:"details,omitempty"`
	Draft       string      `json:"draft,omitempty"`
	Editing     bool        `json:"editing,omitempty"`
	Revision    int         `json:"revision,omitempty"`
	Changes     []DraftLine `json:"changes,omitempty"`
	Prompts     *PromptView `json:"prompts,omitempty"`
	Image       []byte      `json:"image,omitempty"`
	FailedStage StageName   `json:"failedStage,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func snapshotOf(instance string, version uint64, s Stage) Snapshot {
	snap := Snapshot{
		Instance: instance,
		Version:  version,
		Stage:    s.Name(),
		Approval: s.Approval(),
		Busy:     IsPending(s),
	}
	fillArtifacts(&snap, s)
	if f, ok := s.(Failed); ok {
		snap.FailedStage = f.FailedStage()
		snap.Error = f.Message
		if f.Pending != nil {
			fillArtifacts(&snap, f.Pending)
		}
	}
	return snap
}

func fillArtifacts(snap *Snapshot, s Stage) {
	switch st := s.(type) {
	case ContentPending:
		snap.Details = st.Details
		snap.Draft = st.Previous
		snap.Revision = st.Revision
	case ContentReview:
		snap.Details = st.Details
		snap.Draft = st.Draft
		snap.Editing = st.Editing
		snap.Revision = st.Revision
		snap.Changes = st.Changes
	case PromptPending:
		snap.Details = st.Details
		snap.Draft = st.Draft
		snap.Revision = st.Revision
	case PromptReview:
		snap.Details = st.Details
		snap.Draft = st.Draft
		snap.Revision = st.Revision
		snap.Prompts = newPromptView(st.Prompts)
	case ImagePending:
		snap.Details = st.Details
		snap.Draft = st.Draft
		snap.Revision = st.Revision
		snap.Prompts = newPromptView(st.Prompts)
	case ImageReady:
		snap.Details = st.Details
		snap.Draft = st.Draft
		snap.Revision = st.Revision
		snap.Prompts = newPromptView(st.Prompts)
		snap.Image = st.Image
	}
}
