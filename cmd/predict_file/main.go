package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"audio-classification/features"
	"audio-classification/forest"
	"audio-classification/models"
	"audio-classification/predict"
	"audio-classification/store"
	"audio-classification/utils"
	"audio-classification/wav"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	modelDir := flag.String("model-dir", utils.GetEnv("MODEL_DIR", "data"), "Directory for model artifacts")
	artifact := flag.String("artifact", utils.GetEnv("MODEL_ARTIFACT", store.DefaultArtifactName), "Latest model file name")
	version := flag.String("version", "", "Model version to use instead of the latest artifact")
	registryURI := flag.String("registry", utils.GetEnv("MODEL_REGISTRY_URI", ""), "Registry URI; predictions are recorded there")
	padMode := flag.String("pad", utils.GetEnv("FEATURE_PAD_MODE", "none"), "Under-fill policy: none or zero")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Usage: go run ./cmd/predict_file [-version <id>] <audio.wav|audio.mp3> ...")
	}

	cfg := features.DefaultConfig()
	pad, err := features.ParsePadMode(*padMode)
	if err != nil {
		log.Fatalf("invalid -pad: %v", err)
	}
	cfg.Pad = pad

	ctx := context.Background()
	registry, err := store.OpenRegistry(ctx, *registryURI)
	if err != nil {
		log.Fatalf("failed to open registry: %v", err)
	}
	st := store.New(&store.FileStore{Dir: *modelDir, ArtifactName: *artifact}, registry)
	defer st.Close()

	log.Println("Loading model...")
	var (
		model *forest.Forest
		info  models.ModelInfo
	)
	if *version == "" {
		model, info, err = st.Latest(ctx)
	} else {
		model, info, err = st.Version(ctx, *version)
	}
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}
	log.Printf("Model loaded successfully (version %s, %d features, classes %v)\n",
		info.Version, model.NumFeatures(), model.Classes())

	failures := 0
	for _, path := range flag.Args() {
		if err := classifyFile(ctx, st, model, info, path, cfg); err != nil {
			failures++
			fmt.Printf("%-30s ERROR: %v\n", filepath.Base(path), err)
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func classifyFile(ctx context.Context, st *store.Store, model *forest.Forest, info models.ModelInfo, path string, cfg features.Config) error {
	started := time.Now()
	rec := &models.PredictionRecord{
		Timestamp:    started.UTC(),
		SessionID:    "cli",
		ModelVersion: info.Version,
		FileName:     filepath.Base(path),
		NumFeatures:  model.NumFeatures(),
	}
	defer func() {
		rec.LatencyMs = float64(time.Since(started).Microseconds()) / 1000
		if err := st.Registry.RecordPrediction(ctx, rec); err != nil {
			log.Printf("WARNING: failed to record prediction: %v\n", err)
		}
	}()

	audio, err := wav.DecodeFile(path)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.Duration = audio.Duration
	rec.SampleRate = audio.SampleRate

	vector, err := features.ExtractFeatureVector(audio.Samples, audio.SampleRate, model.NumFeatures(), cfg)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	prediction, err := predict.Predict(model, vector)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.Label = prediction.Label
	rec.Confidence = prediction.Confidence

	fmt.Printf("%-30s %-20s %6.1f%%  (%.2fs @ %d Hz)\n",
		filepath.Base(path), prediction.Label, prediction.Confidence*100, audio.Duration, audio.SampleRate)
	for _, p := range prediction.Probabilities[1:] {
		fmt.Printf("%-30s   %-18s %6.1f%%\n", "", p.Label, p.Probability*100)
	}
	return nil
}
