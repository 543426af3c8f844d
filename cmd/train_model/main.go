package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"audio-classification/dataset"
	"audio-classification/models"
	"audio-classification/store"
	"audio-classification/trainer"
	"audio-classification/utils"

	"github.com/joho/godotenv"
)

// Config holds training configuration
type Config struct {
	TablePath   string
	ModelDir    string
	Artifact    string
	RegistryURI string
	Train       trainer.Config
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("=== Random Forest Training Pipeline ===\n")
	log.Printf("Training table: %s\n", config.TablePath)
	log.Printf("Model directory: %s\n", config.ModelDir)
	log.Printf("Trees: %d, seed: %d, test size: %.2f\n", config.Train.Trees, config.Train.Seed, config.Train.TestSize)
	log.Println()

	startTime := time.Now()
	ctx := context.Background()

	log.Println("Step 1: Loading training table...")
	file, err := os.Open(config.TablePath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open table: %v", err)
	}
	table, err := dataset.Load(file, dataset.Options{})
	file.Close()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	log.Printf("Loaded %d rows, %d features (identifier %q, label %q)\n",
		table.Len(), table.NumFeatures(), table.IDColumn, table.LabelColumn)
	for label, count := range table.ClassCounts() {
		log.Printf("  - %-20s %d samples\n", label, count)
	}
	log.Println()

	log.Println("Step 2: Training model...")
	result, err := trainer.Train(ctx, table, config.Train)
	if err != nil {
		log.Fatalf("ERROR: Training failed: %v", err)
	}
	log.Printf("Model training complete! (%d train / %d test rows, %s)\n",
		result.TrainRows, result.TestRows, result.Duration.Round(time.Millisecond))
	log.Println()

	log.Println("Step 3: Evaluating model...")
	log.Printf("Classification Report:\n\n%s\n", result.Report)

	log.Println("Step 4: Saving model...")
	registry, err := store.OpenRegistry(ctx, config.RegistryURI)
	if err != nil {
		log.Fatalf("ERROR: Failed to open registry: %v", err)
	}
	st := store.New(&store.FileStore{Dir: config.ModelDir, ArtifactName: config.Artifact}, registry)
	defer st.Close()

	info, err := st.Save(ctx, result.Model, models.ModelInfo{
		SourceTable: filepath.Base(config.TablePath),
		TrainRows:   result.TrainRows,
		TestRows:    result.TestRows,
		Accuracy:    result.Report.Accuracy,
		Report:      result.Report.String(),
	})
	if err != nil {
		log.Fatalf("ERROR: Failed to save model: %v", err)
	}
	log.Printf("Model saved as %s (version %s)\n", st.Files.ArtifactPath(), info.Version)
	log.Printf("Total time: %s\n", time.Since(startTime).Round(time.Millisecond))
}

func parseFlags() Config {
	config := Config{Train: trainer.ConfigFromEnv()}
	seed := int(config.Train.Seed)

	flag.StringVar(&config.TablePath, "table", "features.csv",
		"CSV with an identifier column, feature columns and a Label column")
	flag.StringVar(&config.ModelDir, "model-dir", utils.GetEnv("MODEL_DIR", "data"),
		"Directory for model artifacts")
	flag.StringVar(&config.Artifact, "artifact", utils.GetEnv("MODEL_ARTIFACT", store.DefaultArtifactName),
		"File name of the latest model artifact")
	flag.StringVar(&config.RegistryURI, "registry", utils.GetEnv("MODEL_REGISTRY_URI", ""),
		"Registry URI (sqlite://path or mongodb://...)")
	flag.IntVar(&config.Train.Trees, "trees", config.Train.Trees, "Number of trees")
	flag.IntVar(&seed, "seed", seed, "Random seed for the split and the forest")
	flag.Float64Var(&config.Train.TestSize, "test-size", config.Train.TestSize, "Held-out fraction")

	flag.Parse()
	config.Train.Seed = uint64(seed)

	if _, err := os.Stat(config.TablePath); os.IsNotExist(err) {
		log.Fatalf("ERROR: Training table does not exist: %s", config.TablePath)
	}

	return config
}
