// Package shell drives one user's train-then-predict workflow. A Session moves
// Idle → TableUploaded → Trained → AudioUploaded → Predicted; any failing step
// parks it in Error with a visible message while Step keeps the last state
// that succeeded.
package shell

import (
	"time"

	"audio-classification/models"
	"audio-classification/predict"
	"audio-classification/trainer"
)

// State is a workflow position.
type State string

const (
	StateIdle          State = "idle"
	StateTableUploaded State = "table_uploaded"
	StateTrained       State = "trained"
	StateAudioUploaded State = "audio_uploaded"
	StatePredicted     State = "predicted"
	StateError         State = "error"
)

// Kind classifies a status message. Everything but KindInfo is an error.
type Kind string

const (
	KindInfo      Kind = "info"
	KindDecode    Kind = "decode"
	KindFormat    Kind = "format"
	KindDimension Kind = "dimension"
	KindStorage   Kind = "storage"
	KindState     Kind = "state"
	KindInternal  Kind = "internal"
)

// Message is one line of the visible session log.
type Message struct {
	Time time.Time `json:"time"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
}

// IsError reports whether the message describes a failure.
func (m Message) IsError() bool { return m.Kind != KindInfo }

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	ID           string              `json:"id"`
	State        State               `json:"state"`
	Step         State               `json:"step"`
	Messages     []Message           `json:"messages"`
	TableName    string              `json:"tableName,omitempty"`
	AudioName    string              `json:"audioName,omitempty"`
	Report       *trainer.Report     `json:"report,omitempty"`
	ReportText   string              `json:"reportText,omitempty"`
	Model        *models.ModelInfo   `json:"model,omitempty"`
	Prediction   *predict.Prediction `json:"prediction,omitempty"`
	FeatureCount int                 `json:"featureCount"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// HasModel reports whether the session can take audio.
func (s Snapshot) HasModel() bool { return s.Model != nil }

// LastError returns the most recent error message, if the session is in Error.
func (s Snapshot) LastError() string {
	if s.State != StateError {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsError() {
			return s.Messages[i].Text
		}
	}
	return ""
}
