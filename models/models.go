package models

import (
	"time"
)

// ModelInfo describes one saved model version.
type ModelInfo struct {
	Version      string    `json:"version" bson:"_id"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	ArtifactPath string    `json:"artifactPath" bson:"artifactPath"`
	SourceTable  string    `json:"sourceTable,omitempty" bson:"sourceTable,omitempty"`
	NumFeatures  int       `json:"numFeatures" bson:"numFeatures"`
	Classes      []string  `json:"classes" bson:"classes"`
	Trees        int       `json:"trees" bson:"trees"`
	TrainRows    int       `json:"trainRows" bson:"trainRows"`
	TestRows     int       `json:"testRows" bson:"testRows"`
	Accuracy     float64   `json:"accuracy" bson:"accuracy"`
	Report       string    `json:"report,omitempty" bson:"report,omitempty"`
}

// PredictionRecord is one audio classification run.
type PredictionRecord struct {
	ID           int64     `json:"id" bson:"-"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
	SessionID    string    `json:"sessionId" bson:"sessionId"`
	ModelVersion string    `json:"modelVersion" bson:"modelVersion"`
	FileName     string    `json:"fileName" bson:"fileName"`
	Duration     float64   `json:"duration" bson:"duration"`
	SampleRate   int       `json:"sampleRate" bson:"sampleRate"`
	NumFeatures  int       `json:"numFeatures" bson:"numFeatures"`
	Label        string    `json:"label,omitempty" bson:"label,omitempty"`
	Confidence   float64   `json:"confidence" bson:"confidence"`
	LatencyMs    float64   `json:"latencyMs" bson:"latencyMs"`
	Error        string    `json:"error,omitempty" bson:"error,omitempty"`
}
