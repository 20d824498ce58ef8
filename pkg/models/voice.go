package models

// VoiceProfile describes a user's set of recorded reference samples. The
// synthesis backend clones the voice at inference time from ReferenceSample;
// training only flips metadata, there is no persisted model artifact.
type VoiceProfile struct {
	UserID          string `json:"user_id"`
	Completed       []int  `json:"completed"`
	Total           int    `json:"total"`
	Status          string `json:"status"`
	ReferenceSample string `json:"reference_sample,omitempty"`
}

// Ready reports whether the profile can be used for synthesis.
func (p *VoiceProfile) Ready() bool {
	return p.Status == VoiceStatusReady
}

// VoiceProfile status constants
const (
	VoiceStatusIncomplete = "incomplete"
	VoiceStatusReady      = "ready"
)
