// Package encode wraps the external text encoder. The encoder is a
// black box from the trainer's point of view: text in, fixed-size
// vector out.
package encode

import (
	"context"
	"strings"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/textencoding"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Encoder turns a batch of texts into a (N, D) embedding matrix.
type Encoder interface {
	Encode(ctx context.Context, texts []string) (tensor.Tensor, error)
}

// Config selects and constrains the underlying model.
type Config struct {
	ModelsDir string
	ModelName string
	// MaxLength truncates each input to this many whitespace tokens
	// before encoding. Zero disables truncation.
	MaxLength int
}

// TextEncoder is the Cybertron-backed Encoder.
type TextEncoder struct {
	inner     textencoding.Interface
	maxLength int
}

// NewTextEncoder loads the encoding model, downloading it into
// ModelsDir on first use. An empty ModelName falls back to a small
// sentence-transformer.
func NewTextEncoder(cfg Config) (*TextEncoder, error) {
	name := cfg.ModelName
	if name == "" {
		name = "sentence-transformers/all-MiniLM-L6-v2"
	}
	dir := cfg.ModelsDir
	if dir == "" {
		dir = "models"
	}
	m, err := tasks.Load[textencoding.Interface](&tasks.Config{
		ModelsDir: dir,
		ModelName: name,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load text encoding model %s", name)
	}
	return &TextEncoder{inner: m, maxLength: cfg.MaxLength}, nil
}

// Encode embeds each text and stacks the results into a (N, D) float32
// tensor.
func (e *TextEncoder) Encode(ctx context.Context, texts []string) (tensor.Tensor, error) {
	var all []float32
	var dim int

	for _, text := range texts {
		result, err := e.inner.Encode(ctx, e.truncate(text), 0)
		if err != nil {
			return nil, errors.Wrap(err, "encode text")
		}
		data := result.Vector.Data().F64()
		if dim == 0 {
			dim = len(data)
		} else if len(data) != dim {
			return nil, errors.Errorf("inconsistent embedding size: %d vs %d", len(data), dim)
		}
		for _, v := range data {
			all = append(all, float32(v))
		}
	}
	return tensor.New(tensor.WithShape(len(texts), dim), tensor.WithBacking(all)), nil
}

func (e *TextEncoder) truncate(text string) string {
	if e.maxLength <= 0 {
		return text
	}
	fields := strings.Fields(text)
	if len(fields) <= e.maxLength {
		return text
	}
	return strings.Join(fields[:e.maxLength], " ")
}
