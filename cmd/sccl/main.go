// Command sccl trains a joint contrastive + self-training clustering
// over one of four inputs: a CSV of pre-computed vectors, vectors
// plus must-link constraint pairs, raw short texts run through a
// sentence encoder, or knowledge-graph entities fused with text
// embeddings of their mentions.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sccl/internal/cluster"
	"sccl/internal/config"
	"sccl/internal/encode"
	"sccl/internal/metrics"
	"sccl/internal/model"
	"sccl/internal/trainer"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	mode := flag.String("mode", "matrix", "training mode: matrix, pairs, text or entity")
	dataPath := flag.String("data", "", "dataset CSV")
	constraintsPath := flag.String("constraints", "", "must-link pair CSV (pairs mode; optional in entity mode)")
	labelsPath := flag.String("labels", "", "gold labels, one integer per line (optional)")
	kgePath := flag.String("kge", "", "pre-trained entity embedding matrix CSV (entity mode)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *dataPath == "" {
		log.Fatal().Msg("-data is required")
	}

	if err := run(*mode, *dataPath, *constraintsPath, *labelsPath, *kgePath, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
}

func run(mode, dataPath, constraintsPath, labelsPath, kgePath string, cfg config.Config, log zerolog.Logger) error {
	fileSink, err := metrics.NewFileSink(cfg.ResultDir)
	if err != nil {
		return err
	}
	defer fileSink.Close()
	log.Info().Str("dir", fileSink.Dir()).Msg("writing run artifacts")
	sink := metrics.MultiSink{metrics.LogSink{Log: log}, fileSink}

	gold, err := loadLabels(labelsPath)
	if err != nil {
		return err
	}

	var v trainer.Variant
	var size int

	switch mode {
	case "matrix", "pairs":
		data, err := loadMatrix(dataPath)
		if err != nil {
			return err
		}
		var constraints [][2]int
		if mode == "pairs" {
			constraints, err = loadConstraints(constraintsPath, len(data))
			if err != nil {
				return err
			}
		}
		centers, err := initialCenters(data, cfg)
		if err != nil {
			return err
		}
		mv, err := trainer.NewMatrixVariant(data, constraints, centers, cfg, log)
		if err != nil {
			return err
		}
		defer mv.Close()
		v, size = mv, len(data)

	case "text":
		texts, aug1, aug2, textGold, err := loadTexts(dataPath, cfg.AugType == config.AugExplicit)
		if err != nil {
			return err
		}
		if gold == nil {
			gold = textGold
		}
		enc, err := encode.NewTextEncoder(encode.Config{
			ModelsDir: cfg.ModelsDir,
			ModelName: cfg.ModelName,
			MaxLength: cfg.MaxLength,
		})
		if err != nil {
			return err
		}
		ctx := context.Background()
		textEmb, err := encodeAll(ctx, enc, texts)
		if err != nil {
			return errors.Wrap(err, "encode texts")
		}
		task, err := model.ParseTaskType(string(cfg.AugType))
		if err != nil {
			return err
		}
		var aug1Emb, aug2Emb [][]float32
		if task == model.TaskExplicit {
			if aug1Emb, err = encodeAll(ctx, enc, aug1); err != nil {
				return errors.Wrap(err, "encode augmentation 1")
			}
			if aug2Emb, err = encodeAll(ctx, enc, aug2); err != nil {
				return errors.Wrap(err, "encode augmentation 2")
			}
		}
		centers, err := initialCenters(textEmb, cfg)
		if err != nil {
			return err
		}
		tv, err := trainer.NewTextVariant(task, textEmb, aug1Emb, aug2Emb, centers, cfg, log)
		if err != nil {
			return err
		}
		defer tv.Close()
		v, size = tv, len(textEmb)

	case "entity":
		if kgePath == "" {
			return errors.New("-kge is required in entity mode")
		}
		entityIDs, texts, entityGold, err := loadEntities(dataPath)
		if err != nil {
			return err
		}
		if gold == nil {
			gold = entityGold
		}
		kge, err := loadMatrix(kgePath)
		if err != nil {
			return err
		}
		for i, id := range entityIDs {
			if id < 0 || id >= len(kge) {
				return errors.Errorf("%s row %d: entity %d outside embedding matrix [0,%d)",
					dataPath, i+2, id, len(kge))
			}
		}
		var constraints [][2]int
		if constraintsPath != "" {
			constraints, err = loadConstraints(constraintsPath, len(entityIDs))
			if err != nil {
				return err
			}
		}
		enc, err := encode.NewTextEncoder(encode.Config{
			ModelsDir: cfg.ModelsDir,
			ModelName: cfg.ModelName,
			MaxLength: cfg.MaxLength,
		})
		if err != nil {
			return err
		}
		textEmb, err := encodeAll(context.Background(), enc, texts)
		if err != nil {
			return errors.Wrap(err, "encode texts")
		}
		centers, err := initialCenters(fuseRows(entityIDs, kge, textEmb), cfg)
		if err != nil {
			return err
		}
		ev, err := trainer.NewEntityVariant(entityIDs, textEmb, kge, constraints, centers, cfg, log)
		if err != nil {
			return err
		}
		defer ev.Close()
		v, size = ev, len(entityIDs)

	default:
		return errors.Errorf("unknown mode %q (options: matrix, pairs, text, entity)", mode)
	}

	if gold != nil && len(gold) != size {
		return errors.Errorf("gold labels do not match dataset size: %d vs %d", len(gold), size)
	}

	ctl := trainer.New(v, size, gold, cfg, sink, nil, log)
	pred, state, err := ctl.Train()
	if err != nil {
		return err
	}
	log.Info().Str("status", state.Status.String()).Int("step", state.Step).Msg("training finished")
	return writeAssignments(filepath.Join(fileSink.Dir(), "assignments.csv"), pred)
}

// initialCenters seeds the cluster centers with k-means over the raw
// data.
func initialCenters(data [][]float32, cfg config.Config) ([][]float64, error) {
	data64 := make([][]float64, len(data))
	for i, r := range data {
		row := make([]float64, len(r))
		for j, x := range r {
			row[j] = float64(x)
		}
		data64[i] = row
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	centers, _ := cluster.KMeans(data64, cfg.NumClusters, 100, rng)
	if len(centers) != cfg.NumClusters {
		return nil, errors.Errorf("need at least %d points to seed %d clusters, got %d",
			cfg.NumClusters, cfg.NumClusters, len(data))
	}
	return centers, nil
}

func loadMatrix(path string) ([][]float32, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(records))
	for i, rec := range records {
		row := make([]float32, len(rec))
		for j, field := range rec {
			f, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "%s row %d column %d", path, i+1, j+1)
			}
			row[j] = float32(f)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%s is empty", path)
	}
	return out, nil
}

func loadConstraints(path string, datasetSize int) ([][2]int, error) {
	if path == "" {
		return nil, errors.New("-constraints is required in pairs mode")
	}
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([][2]int, 0, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, errors.Errorf("%s row %d: want 2 columns, got %d", path, i+1, len(rec))
		}
		var pair [2]int
		for j, field := range rec {
			idx, err := strconv.Atoi(field)
			if err != nil {
				return nil, errors.Wrapf(err, "%s row %d column %d", path, i+1, j+1)
			}
			if idx < 0 || idx >= datasetSize {
				return nil, errors.Errorf("%s row %d: index %d out of range [0,%d)", path, i+1, idx, datasetSize)
			}
			pair[j] = idx
		}
		out = append(out, pair)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%s holds no constraint pairs", path)
	}
	return out, nil
}

// loadTexts reads a headered CSV with a required text column and
// optional label, augmentation_1 and augmentation_2 columns.
func loadTexts(path string, needAug bool) (texts, aug1, aug2 []string, labels []int, err error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, nil, errors.Errorf("%s has no data rows", path)
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[name] = i
	}
	textCol, ok := cols["text"]
	if !ok {
		return nil, nil, nil, nil, errors.Errorf("%s has no text column", path)
	}
	a1Col, hasA1 := cols["augmentation_1"]
	a2Col, hasA2 := cols["augmentation_2"]
	if needAug && (!hasA1 || !hasA2) {
		return nil, nil, nil, nil, errors.Errorf("%s lacks augmentation_1/augmentation_2 columns required for explicit augmentation", path)
	}
	labelCol, hasLabel := cols["label"]

	for i, rec := range records[1:] {
		texts = append(texts, rec[textCol])
		if hasA1 && hasA2 {
			aug1 = append(aug1, rec[a1Col])
			aug2 = append(aug2, rec[a2Col])
		}
		if hasLabel {
			l, err := strconv.Atoi(rec[labelCol])
			if err != nil {
				return nil, nil, nil, nil, errors.Wrapf(err, "%s row %d label", path, i+2)
			}
			labels = append(labels, l)
		}
	}
	return texts, aug1, aug2, labels, nil
}

// loadEntities reads a headered CSV with required entity and text
// columns and an optional label column. The entity column holds row
// indices into the pre-trained embedding matrix.
func loadEntities(path string) (ids []int, texts []string, labels []int, err error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, errors.Errorf("%s has no data rows", path)
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[name] = i
	}
	entityCol, ok := cols["entity"]
	if !ok {
		return nil, nil, nil, errors.Errorf("%s has no entity column", path)
	}
	textCol, ok := cols["text"]
	if !ok {
		return nil, nil, nil, errors.Errorf("%s has no text column", path)
	}
	labelCol, hasLabel := cols["label"]

	for i, rec := range records[1:] {
		id, err := strconv.Atoi(rec[entityCol])
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "%s row %d entity", path, i+2)
		}
		ids = append(ids, id)
		texts = append(texts, rec[textCol])
		if hasLabel {
			l, err := strconv.Atoi(rec[labelCol])
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "%s row %d label", path, i+2)
			}
			labels = append(labels, l)
		}
	}
	return ids, texts, labels, nil
}

// fuseRows concatenates each mention's entity embedding with its text
// embedding, the space the fused variant clusters in.
func fuseRows(ids []int, kge, textEmb [][]float32) [][]float32 {
	out := make([][]float32, len(ids))
	for i, id := range ids {
		row := make([]float32, 0, len(kge[id])+len(textEmb[i]))
		row = append(row, kge[id]...)
		row = append(row, textEmb[i]...)
		out[i] = row
	}
	return out
}

func loadLabels(path string) ([]int, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var labels []int
	for {
		var l int
		_, err := fmt.Fscanln(f, &l)
		if err != nil {
			break
		}
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("%s holds no labels", path)
	}
	return labels, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return records, nil
}

func encodeAll(ctx context.Context, enc encode.Encoder, texts []string) ([][]float32, error) {
	t, err := enc.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	shape := t.Shape()
	n, d := shape[0], shape[1]
	data := t.Data().([]float32)
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = data[i*d : (i+1)*d]
	}
	return out, nil
}

func writeAssignments(path string, pred []int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	for i, c := range pred {
		if err := w.Write([]string{strconv.Itoa(i), strconv.Itoa(c)}); err != nil {
			return errors.Wrap(err, "write assignment")
		}
	}
	w.Flush()
	return w.Error()
}
