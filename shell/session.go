package shell

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"audio-classification/dataset"
	"audio-classification/features"
	"audio-classification/forest"
	"audio-classification/models"
	"audio-classification/predict"
	"audio-classification/store"
	"audio-classification/trainer"
	"audio-classification/utils"
	"audio-classification/wav"

	"github.com/mdobak/go-xerrors"
)

// Deps are shared by every session of a Manager.
type Deps struct {
	Store    *store.Store
	Features features.Config
	Train    trainer.Config
	TempDir  string
	Notifier Notifier
}

// Session is one user's workflow. Its methods serialise on an internal lock,
// so a session runs one action at a time.
type Session struct {
	ID string

	deps     *Deps
	lastUsed atomic.Int64

	mu           sync.Mutex
	state        State
	step         State
	messages     []Message
	tableName    string
	audioName    string
	report       *trainer.Report
	model        *forest.Forest
	modelInfo    *models.ModelInfo
	prediction   *predict.Prediction
	featureCount int
	updatedAt    time.Time
}

func newSession(id string, deps *Deps) *Session {
	s := &Session{ID: id, deps: deps, state: StateIdle, step: StateIdle, updatedAt: time.Now()}
	s.touch()
	return s
}

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// Snapshot copies the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.ID,
		State:        s.state,
		Step:         s.step,
		Messages:     append([]Message(nil), s.messages...),
		TableName:    s.tableName,
		AudioName:    s.audioName,
		Report:       s.report,
		FeatureCount: s.featureCount,
		UpdatedAt:    s.updatedAt,
	}
	if s.report != nil {
		snap.ReportText = s.report.String()
	}
	if s.modelInfo != nil {
		info := *s.modelInfo
		snap.Model = &info
	}
	if s.prediction != nil {
		p := *s.prediction
		snap.Prediction = &p
	}
	return snap
}

// UploadTable loads a labelled feature table, trains a forest on it, reports
// on the held-out rows and saves the model. Nothing is saved unless loading
// and training both succeed.
func (s *Session) UploadTable(ctx context.Context, name string, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.messages = nil
	s.report = nil
	s.prediction = nil
	s.audioName = ""
	s.tableName = filepath.Base(name)

	s.info(fmt.Sprintf("Uploaded table %s.", s.tableName))
	table, err := dataset.Load(r, dataset.Options{})
	if err != nil {
		return s.fail(ctx, "training", err)
	}
	s.transition(StateTableUploaded)
	s.info(fmt.Sprintf("Loaded %d rows with %d features across %d classes.",
		table.Len(), table.NumFeatures(), len(table.Classes())))

	s.info("Training model...")
	result, err := trainer.Train(ctx, table, s.deps.Train)
	if err != nil {
		return s.fail(ctx, "training", err)
	}
	s.info("Model training complete!")

	s.info("Evaluating model...")
	s.report = result.Report
	s.info("Classification Report:")
	s.info(result.Report.String())

	s.info("Saving model...")
	info, err := s.deps.Store.Save(ctx, result.Model, models.ModelInfo{
		SourceTable: s.tableName,
		TrainRows:   result.TrainRows,
		TestRows:    result.TestRows,
		Accuracy:    result.Report.Accuracy,
		Report:      result.Report.String(),
	})
	if err != nil {
		return s.fail(ctx, "training", err)
	}
	s.info(fmt.Sprintf("Model saved as %s (version %s).", filepath.Base(s.deps.Store.Files.ArtifactPath()), info.Version))

	s.model = result.Model
	s.modelInfo = &info
	s.featureCount = result.Model.NumFeatures()
	s.info("Model is ready for prediction.")
	s.transition(StateTrained)

	utils.GetLogger().InfoContext(ctx, "model trained",
		slog.String("session", s.ID),
		slog.String("version", info.Version),
		slog.Int("features", info.NumFeatures),
		slog.Int("trainRows", result.TrainRows),
		slog.Int("testRows", result.TestRows),
		slog.Float64("accuracy", result.Report.Accuracy),
		slog.Duration("took", result.Duration),
	)
	return nil
}

// LoadModel replaces the session model with a saved one: the latest artifact
// when version is empty, otherwise that exact version.
func (s *Session) LoadModel(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.info("Loading model...")
	var (
		model *forest.Forest
		info  models.ModelInfo
		err   error
	)
	if version == "" {
		model, info, err = s.deps.Store.Latest(ctx)
	} else {
		model, info, err = s.deps.Store.Version(ctx, version)
	}
	if err != nil {
		return s.fail(ctx, "loading", err)
	}

	s.model = model
	s.modelInfo = &info
	s.featureCount = model.NumFeatures()
	s.prediction = nil
	s.info("Model loaded successfully.")
	s.transition(StateTrained)
	return nil
}

// UploadAudio classifies one WAV or MP3 upload with the session model. The
// bytes are staged in a temp file that is removed before returning.
func (s *Session) UploadAudio(ctx context.Context, name string, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.model == nil {
		return s.fail(ctx, "prediction", errNoModel)
	}

	started := time.Now()
	s.audioName = filepath.Base(name)
	s.prediction = nil
	rec := &models.PredictionRecord{
		Timestamp:   started.UTC(),
		SessionID:   s.ID,
		FileName:    s.audioName,
		NumFeatures: s.featureCount,
	}
	if s.modelInfo != nil {
		rec.ModelVersion = s.modelInfo.Version
	}
	defer s.recordPrediction(ctx, rec, started)

	path, err := s.stage(r)
	if err != nil {
		rec.Error = err.Error()
		return s.fail(ctx, "prediction", err)
	}
	defer os.Remove(path)

	s.info(fmt.Sprintf("Uploaded audio %s.", s.audioName))
	s.transition(StateAudioUploaded)

	s.info("Extracting poly features...")
	audio, err := wav.DecodeFile(path)
	if err != nil {
		rec.Error = err.Error()
		return s.fail(ctx, "prediction", err)
	}
	rec.Duration = audio.Duration
	rec.SampleRate = audio.SampleRate

	vector, err := features.ExtractFeatureVector(audio.Samples, audio.SampleRate, s.featureCount, s.deps.Features)
	if err != nil {
		rec.Error = err.Error()
		return s.fail(ctx, "prediction", err)
	}
	s.info(fmt.Sprintf("Number of features extracted: %d", len(vector)))

	s.info("Predicting label...")
	prediction, err := predict.Predict(s.model, vector)
	if err != nil {
		rec.Error = err.Error()
		return s.fail(ctx, "prediction", err)
	}
	rec.Label = prediction.Label
	rec.Confidence = prediction.Confidence

	s.prediction = &prediction
	s.info(fmt.Sprintf("Predicted Label: %s", prediction.Label))
	s.transition(StatePredicted)
	return nil
}

// stage copies r into a fresh temp file that keeps the upload's extension.
func (s *Session) stage(r io.Reader) (string, error) {
	dir := s.deps.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := utils.CreateFolder(dir); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(s.audioName))
	if ext != ".wav" && ext != ".mp3" {
		ext = ""
	}
	tmp, err := os.CreateTemp(dir, "audio-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return tmp.Name(), nil
}

func (s *Session) recordPrediction(ctx context.Context, rec *models.PredictionRecord, started time.Time) {
	if s.deps.Store == nil || s.deps.Store.Registry == nil {
		return
	}
	rec.LatencyMs = float64(time.Since(started).Microseconds()) / 1000
	if err := s.deps.Store.Registry.RecordPrediction(context.WithoutCancel(ctx), rec); err != nil {
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(ctx, "failed to record prediction", slog.String("session", s.ID), slog.Any("error", err))
	}
}

func (s *Session) info(text string) {
	s.push(Message{Time: time.Now(), Kind: KindInfo, Text: text})
}

func (s *Session) push(msg Message) {
	s.messages = append(s.messages, msg)
	s.updatedAt = msg.Time
	s.notifier().Status(s.ID, msg)
}

func (s *Session) transition(state State) {
	s.state = state
	s.step = state
	s.updatedAt = time.Now()
	s.notifier().StateChanged(s.ID, s.state, s.step)
}

// fail moves the session into Error, keeps Step, and returns err.
func (s *Session) fail(ctx context.Context, phase string, err error) error {
	kind := classify(err)
	s.push(Message{Time: time.Now(), Kind: kind, Text: describe(phase, kind, err)})
	s.state = StateError
	s.notifier().StateChanged(s.ID, s.state, s.step)

	logErr := xerrors.New(err)
	utils.GetLogger().ErrorContext(ctx, "session step failed",
		slog.String("session", s.ID),
		slog.String("phase", phase),
		slog.String("kind", string(kind)),
		slog.Any("error", logErr),
	)
	return err
}

func (s *Session) notifier() Notifier {
	if s.deps.Notifier == nil {
		return nopNotifier{}
	}
	return s.deps.Notifier
}
