package domain

// NotAvailable is shown in place of a missing negative prompt.
const NotAvailable = "N/A"

// PromptPair is the image prompt and its optional negative prompt.
type PromptPair struct {
	ImagePrompt    string `json:"imagePrompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	// Raw is the unparsed generator output.
	Raw string `json:"raw,omitempty"`
}

// HasNegative reports whether the generator supplied a negative prompt.
func (p PromptPair) HasNegative() bool {
	return p.NegativePrompt != ""
}

// NegativeOrNA returns the negative prompt, or NotAvailable when absent.
func (p PromptPair) NegativeOrNA() string {
	if p.NegativePrompt == "" {
		return NotAvailable
	}
	return p.NegativePrompt
}

// IsEmpty reports whether no usable image prompt is present.
func (p PromptPair) IsEmpty() bool {
	return p.ImagePrompt == ""
}
