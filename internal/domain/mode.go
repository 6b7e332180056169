package domain

// Mode names a chat task mode.
type Mode string

const (
	ModeGeneral    Mode = "GENERAL"
	ModeMarketing  Mode = "MARKETING"
	ModeContent    Mode = "CONTENT"
	ModeEngagement Mode = "ENGAGEMENT"
)

// TaskMode is a classified chat intent with the objective and guidelines
// forwarded to the generator.
type TaskMode struct {
	Mode       Mode   `json:"mode"`
	Objective  string `json:"objective"`
	Guidelines string `json:"guidelines"`
}

var taskModes = map[Mode]TaskMode{
	ModeGeneral: {
		Mode:       ModeGeneral,
		Objective:  "Provide helpful business advice",
		Guidelines: "Be supportive and realistic",
	},
	ModeMarketing: {
		Mode:       ModeMarketing,
		Objective:  "Generate simple marketing strategies",
		Guidelines: "Focus on free/low-cost marketing tactics that can be done solo",
	},
	ModeContent: {
		Mode:       ModeContent,
		Objective:  "Create content ideas and suggestions",
		Guidelines: "Provide specific, actionable content ideas that require no special tools",
	},
	ModeEngagement: {
		Mode:       ModeEngagement,
		Objective:  "Improve customer engagement and retention",
		Guidelines: "Suggest personal, authentic ways to connect with customers",
	},
}

// TaskModeFor returns the fixed task mode for m. Unknown modes map to GENERAL.
func TaskModeFor(m Mode) TaskMode {
	if tm, ok := taskModes[m]; ok {
		return tm
	}
	return taskModes[ModeGeneral]
}
