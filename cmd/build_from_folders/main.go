package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"audio-classification/features"
	"audio-classification/utils"
	"audio-classification/wav"

	"golang.org/x/sync/errgroup"
)

type sample struct {
	path   string
	label  string
	vector []float64
}

func main() {
	rootDir := flag.String("dir", "", "Root directory containing one subdirectory per label")
	outputFile := flag.String("out", "features.csv", "Output training table")
	numFeatures := flag.Int("n", 0, "Features per file (0 uses the shortest file's count)")
	flag.Parse()

	if *rootDir == "" {
		log.Fatal("Usage: go run ./cmd/build_from_folders -dir <directory> [-out <file>] [-n <features>]\n\n" +
			"Example structure:\n" +
			"  recordings/\n" +
			"    drone/\n" +
			"      sample1.wav\n" +
			"      sample2.mp3\n" +
			"    background/\n" +
			"      ambient.wav\n")
	}

	subdirs, err := discoverSubdirectories(*rootDir)
	if err != nil {
		log.Fatalf("failed to read directory: %v", err)
	}
	if len(subdirs) == 0 {
		log.Fatalf("no subdirectories found in %s", *rootDir)
	}

	log.Printf("Found %d subdirectories in %s:\n", len(subdirs), *rootDir)
	var samples []*sample
	for _, dir := range subdirs {
		label := inferLabelFromDirectory(dir)
		files, err := collectAudioFiles(dir)
		if err != nil {
			log.Printf("  ERROR reading %s: %v\n", dir, err)
			continue
		}
		log.Printf("  - %s (label '%s'): %d files", filepath.Base(dir), label, len(files))
		for _, f := range files {
			samples = append(samples, &sample{path: f, label: label})
		}
	}
	if len(samples) == 0 {
		log.Fatalf("no audio files found under %s", *rootDir)
	}

	cfg := features.DefaultConfig()
	var (
		mu     sync.Mutex
		failed int
	)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, s := range samples {
		g.Go(func() error {
			audio, err := wav.DecodeFile(s.path)
			if err == nil {
				var matrix [][]float64
				matrix, err = features.PolyFeatures(audio.Samples, audio.SampleRate, cfg)
				if err == nil {
					s.vector = features.Flatten(matrix)
				}
			}
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				log.Printf("  ✗ %s: %v\n", filepath.Base(s.path), err)
			}
			return nil
		})
	}
	g.Wait()

	var ok []*sample
	shortest := 0
	for _, s := range samples {
		if s.vector == nil {
			continue
		}
		ok = append(ok, s)
		if shortest == 0 || len(s.vector) < shortest {
			shortest = len(s.vector)
		}
	}
	if len(ok) == 0 {
		log.Fatalf("no file could be processed")
	}

	n := *numFeatures
	if n <= 0 {
		n = shortest
	}
	log.Printf("Using %d features per file (%d processed, %d failed)\n", n, len(ok), failed)

	if err := writeTable(*outputFile, ok, n); err != nil {
		log.Fatalf("failed to write table: %v", err)
	}

	stats := make(map[string]int)
	skipped := 0
	for _, s := range ok {
		if len(s.vector) < n {
			skipped++
			continue
		}
		stats[s.label]++
	}
	log.Printf("✓ Wrote %s\n", *outputFile)
	if skipped > 0 {
		log.Printf("WARNING: %d files were shorter than %d features and were left out\n", skipped, n)
	}
	labels := make([]string, 0, len(stats))
	for label := range stats {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	log.Println("Label distribution:")
	for _, label := range labels {
		log.Printf("  %-20s: %d rows\n", label, stats[label])
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("Next steps:")
	log.Println("1. Train the model:")
	log.Println("   go run ./cmd/train_model -table", *outputFile)
	log.Println("2. Start the server:")
	log.Println("   go run . serve -proto http -p 5000")
	log.Println(strings.Repeat("=", 60))
}

// writeTable emits the File Names / poly_i / Label layout the loader expects.
func writeTable(path string, samples []*sample, n int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.CreateFolder(dir); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := make([]string, 0, n+2)
	header = append(header, "File Names")
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("poly_%d", i))
	}
	header = append(header, "Label")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		if len(s.vector) < n {
			continue
		}
		row := make([]string, 0, n+2)
		row = append(row, filepath.Base(s.path))
		for _, v := range s.vector[:n] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, s.label)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func discoverSubdirectories(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			subdirs = append(subdirs, filepath.Join(rootDir, entry.Name()))
		}
	}
	return subdirs, nil
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
	return files, nil
}

func inferLabelFromDirectory(dirPath string) string {
	label := strings.ToLower(filepath.Base(dirPath))
	label = strings.ReplaceAll(label, "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	return strings.TrimSpace(label)
}
