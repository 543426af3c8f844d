package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"audio-classification/dataset"
	"audio-classification/features"
	"audio-classification/trainer"
	"audio-classification/wav"
)

// Checks that feature extraction and training are repeatable.
func main() {
	tablePath := flag.String("table", "", "Optional training table; trains twice and compares the encoded models")
	runs := flag.Int("runs", 5, "Number of repetitions")
	n := flag.Int("n", 0, "Features to extract (0 keeps the full vector)")
	flag.Parse()

	if flag.NArg() == 0 && *tablePath == "" {
		log.Fatal("Usage: go run ./cmd/test_determinism [-table features.csv] [-runs 5] [<audio file>]")
	}

	ok := true
	if flag.NArg() > 0 {
		ok = checkExtraction(flag.Arg(0), *runs, *n) && ok
	}
	if *tablePath != "" {
		ok = checkTraining(*tablePath, *runs) && ok
	}
	if !ok {
		os.Exit(1)
	}
}

func checkExtraction(path string, runs, n int) bool {
	log.Printf("Testing extraction determinism with: %s\n", path)
	audio, err := wav.DecodeFile(path)
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}
	cfg := features.DefaultConfig()

	var featureSets [][]float64
	for i := 0; i < runs; i++ {
		var vec []float64
		if n > 0 {
			vec, err = features.ExtractFeatureVector(audio.Samples, audio.SampleRate, n, cfg)
		} else {
			var matrix [][]float64
			matrix, err = features.PolyFeatures(audio.Samples, audio.SampleRate, cfg)
			vec = features.Flatten(matrix)
		}
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		featureSets = append(featureSets, vec)
		log.Printf("Run %d: %d features, first: %.10f\n", i+1, len(vec), vec[0])
	}

	fmt.Println("\n=== Extraction Determinism Check ===")
	identical := true
	for i := 1; i < runs; i++ {
		if len(featureSets[i]) != len(featureSets[0]) {
			identical = false
			fmt.Printf("❌ Run %d produced %d features, run 1 produced %d\n", i+1, len(featureSets[i]), len(featureSets[0]))
			continue
		}
		for j := range featureSets[0] {
			if math.Float64bits(featureSets[0][j]) != math.Float64bits(featureSets[i][j]) {
				identical = false
				fmt.Printf("❌ Feature %d differs between run 1 and run %d: %.15f vs %.15f\n",
					j, i+1, featureSets[0][j], featureSets[i][j])
				break
			}
		}
	}
	if identical {
		fmt.Println("✅ All runs produced IDENTICAL features (deterministic)")
	}
	return identical
}

func checkTraining(path string, runs int) bool {
	log.Printf("Testing training determinism with: %s\n", path)
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	table, err := dataset.Load(file, dataset.Options{})
	file.Close()
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	cfg := trainer.ConfigFromEnv()
	var first []byte
	var firstReport string
	identical := true
	fmt.Println("\n=== Training Determinism Check ===")
	for i := 0; i < runs; i++ {
		result, err := trainer.Train(context.Background(), table, cfg)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		encoded, err := result.Model.MarshalBinary()
		if err != nil {
			log.Fatalf("Run %d encode failed: %v", i+1, err)
		}
		log.Printf("Run %d: accuracy %.4f, %d bytes\n", i+1, result.Report.Accuracy, len(encoded))
		if i == 0 {
			first, firstReport = encoded, result.Report.String()
			continue
		}
		if !bytes.Equal(first, encoded) || firstReport != result.Report.String() {
			identical = false
			fmt.Printf("❌ Run %d produced a different model\n", i+1)
		}
	}
	if identical {
		fmt.Println("✅ All runs produced IDENTICAL models (deterministic)")
	}
	return identical
}
