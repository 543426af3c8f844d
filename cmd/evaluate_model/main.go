package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"audio-classification/features"
	"audio-classification/forest"
	"audio-classification/predict"
	"audio-classification/store"
	"audio-classification/trainer"
	"audio-classification/utils"
	"audio-classification/wav"

	"github.com/joho/godotenv"
)

// EvaluationConfig holds evaluation parameters
type EvaluationConfig struct {
	ModelDir   string
	Artifact   string
	Version    string
	DataDir    string
	ReportPath string
}

// Misclassification records one wrong prediction.
type Misclassification struct {
	Filename       string  `json:"filename"`
	TrueLabel      string  `json:"trueLabel"`
	PredictedLabel string  `json:"predictedLabel"`
	Confidence     float64 `json:"confidence"`
}

// EvaluationReport is what gets printed and optionally saved as JSON.
type EvaluationReport struct {
	Timestamp      time.Time           `json:"timestamp"`
	ModelPath      string              `json:"modelPath"`
	ModelVersion   string              `json:"modelVersion,omitempty"`
	Metrics        *trainer.Report     `json:"metrics"`
	Misclassified  []Misclassification `json:"misclassified"`
	Skipped        map[string]string   `json:"skipped,omitempty"`
	AvgConfidence  float64             `json:"avgConfidence"`
	ProcessingTime time.Duration       `json:"processingTime"`
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.Printf("Model directory: %s\n", config.ModelDir)
	log.Printf("Evaluation data: %s\n", config.DataDir)

	ctx := context.Background()
	st := store.New(&store.FileStore{Dir: config.ModelDir, ArtifactName: config.Artifact}, nil)

	var (
		model *forest.Forest
		err   error
	)
	if config.Version == "" {
		model, err = st.Files.Load(ctx)
	} else {
		model, err = st.Files.LoadVersion(ctx, config.Version)
	}
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}
	log.Printf("Loaded forest: %d trees, %d features, classes %v\n", model.NumTrees(), model.NumFeatures(), model.Classes())

	subdirs, err := discoverSubdirectories(config.DataDir)
	if err != nil {
		log.Fatalf("failed to read data directory: %v", err)
	}
	log.Printf("Found %d classes to evaluate\n", len(subdirs))

	report := evaluateModel(model, subdirs)
	report.ModelPath = st.Files.ArtifactPath()
	report.ModelVersion = config.Version

	printEvaluationReport(report)

	if config.ReportPath != "" {
		if err := saveReport(report, config.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			log.Printf("\nReport saved to: %s\n", config.ReportPath)
		}
	}
}

func parseFlags() EvaluationConfig {
	config := EvaluationConfig{}
	flag.StringVar(&config.ModelDir, "model-dir", utils.GetEnv("MODEL_DIR", "data"), "Directory for model artifacts")
	flag.StringVar(&config.Artifact, "artifact", utils.GetEnv("MODEL_ARTIFACT", store.DefaultArtifactName), "Latest model file name")
	flag.StringVar(&config.Version, "version", "", "Evaluate this saved version instead of the latest")
	flag.StringVar(&config.DataDir, "data", "", "Directory with one subdirectory of audio files per label")
	flag.StringVar(&config.ReportPath, "report", "", "Optional path for a JSON report")
	flag.Parse()

	if config.DataDir == "" {
		log.Fatal("Usage: go run ./cmd/evaluate_model -data <labelled audio dir> [-version <id>] [-report out.json]")
	}
	return config
}

func discoverSubdirectories(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			subdirs = append(subdirs, filepath.Join(rootDir, entry.Name()))
		}
	}
	return subdirs, nil
}

func evaluateModel(model *forest.Forest, subdirs []string) EvaluationReport {
	started := time.Now()
	cfg := features.DefaultConfig()
	report := EvaluationReport{Timestamp: started, Skipped: make(map[string]string)}

	var actual, predicted []string
	var confidenceSum float64
	for _, dir := range subdirs {
		trueLabel := inferLabelFromDirectory(dir)
		files, err := collectAudioFiles(dir)
		if err != nil {
			log.Printf("WARNING: Failed to read directory %s: %v\n", dir, err)
			continue
		}
		if len(files) == 0 {
			log.Printf("WARNING: No audio files in %s\n", dir)
			continue
		}

		for _, path := range files {
			label, confidence, err := classifyAudio(model, path, cfg)
			if err != nil {
				log.Printf("  ERROR processing %s: %v\n", filepath.Base(path), err)
				report.Skipped[path] = err.Error()
				continue
			}
			actual = append(actual, trueLabel)
			predicted = append(predicted, label)
			confidenceSum += confidence
			if label != trueLabel {
				report.Misclassified = append(report.Misclassified, Misclassification{
					Filename:       filepath.Base(path),
					TrueLabel:      trueLabel,
					PredictedLabel: label,
					Confidence:     confidence,
				})
			}
		}
	}

	metrics, err := trainer.NewReport(model.Classes(), actual, predicted)
	if err != nil {
		log.Fatalf("failed to build report: %v", err)
	}
	report.Metrics = metrics
	if len(actual) > 0 {
		report.AvgConfidence = confidenceSum / float64(len(actual))
	}
	report.ProcessingTime = time.Since(started)
	return report
}

func classifyAudio(model *forest.Forest, path string, cfg features.Config) (string, float64, error) {
	audio, err := wav.DecodeFile(path)
	if err != nil {
		return "", 0, err
	}
	vector, err := features.ExtractFeatureVector(audio.Samples, audio.SampleRate, model.NumFeatures(), cfg)
	if err != nil {
		return "", 0, err
	}
	prediction, err := predict.Predict(model, vector)
	if err != nil {
		return "", 0, err
	}
	return prediction.Label, prediction.Confidence, nil
}

func collectAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".wav" || ext == ".mp3" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// inferLabelFromDirectory must match the labelling of cmd/build_from_folders.
func inferLabelFromDirectory(dirPath string) string {
	label := strings.ToLower(filepath.Base(dirPath))
	label = strings.ReplaceAll(label, "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	return strings.TrimSpace(label)
}

func printEvaluationReport(report EvaluationReport) {
	log.Println()
	log.Println("=" + strings.Repeat("=", 79))
	log.Println("EVALUATION RESULTS")
	log.Println("=" + strings.Repeat("=", 79))
	log.Println()

	m := report.Metrics
	log.Printf("Overall Accuracy: %.2f%% (%d samples)\n", m.Accuracy*100, m.Total)
	log.Printf("Average Confidence: %.2f%%\n", report.AvgConfidence*100)
	log.Printf("Processing Time: %.2f seconds\n", report.ProcessingTime.Seconds())
	if len(report.Skipped) > 0 {
		log.Printf("Skipped files: %d\n", len(report.Skipped))
	}
	log.Println()

	fmt.Println(m.String())
	printConfusionMatrix(m.Confusion)
	printMisclassifications(report.Misclassified)
}

func printConfusionMatrix(matrix map[string]map[string]int) {
	if len(matrix) == 0 {
		return
	}

	log.Println("Confusion Matrix:")
	log.Println(strings.Repeat("-", 80))

	seen := make(map[string]struct{})
	for actual, row := range matrix {
		seen[actual] = struct{}{}
		for pred := range row {
			seen[pred] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Printf("%-15s", "Actual \\ Pred")
	for _, label := range labels {
		fmt.Printf(" %6s", truncate(label, 6))
	}
	fmt.Println()

	for _, trueLabel := range labels {
		fmt.Printf("%-15s", truncate(trueLabel, 15))
		for _, predLabel := range labels {
			if count := matrix[trueLabel][predLabel]; count > 0 {
				fmt.Printf(" %6d", count)
			} else {
				fmt.Printf(" %6s", ".")
			}
		}
		fmt.Println()
	}
	log.Println()
}

func printMisclassifications(items []Misclassification) {
	if len(items) == 0 {
		log.Println("✓ No misclassifications!")
		return
	}

	log.Printf("Misclassifications (%d total):\n", len(items))
	log.Println(strings.Repeat("-", 80))
	for _, misc := range items {
		log.Printf("  %s (%s) → predicted as '%s' (%.1f%% confidence)\n",
			misc.Filename, misc.TrueLabel, misc.PredictedLabel, misc.Confidence*100)
	}
	log.Println()
}

func saveReport(report EvaluationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
