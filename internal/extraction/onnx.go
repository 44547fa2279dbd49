package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/tidwall/gjson"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	modelFile     = "model.onnx"
	tokenizerFile = "tokenizer.json"
	labelsFile    = "config.json"
)

// The ONNX runtime environment is process-wide; recognizers share it.
var (
	ortMu   sync.Mutex
	ortRefs int
)

func acquireRuntime(library string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
	}
	ortRefs++
	return nil
}

func releaseRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		return nil
	}
	ortRefs--
	if ortRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// OrtRecognizer runs a token-classification ONNX model exported from a
// HuggingFace checkpoint.
type OrtRecognizer struct {
	session   *ort.DynamicAdvancedSession
	tk        *tokenizer.Tokenizer
	id2label  map[int]string
	typeIDs   bool
	maxSeqLen int
	modelID   string
	closeOnce sync.Once
	closeErr  error
}

// NewOrtRecognizer loads model.onnx, tokenizer.json and config.json from cfg.Path.
func NewOrtRecognizer(cfg ModelConfig) (*OrtRecognizer, error) {
	dir := cfg.Path
	modelPath := filepath.Join(dir, modelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &ModelLoadError{Code: ErrModelPathNotFound, Path: modelPath, Message: "model file missing", Cause: err}
	}

	tk, err := pretrained.FromFile(filepath.Join(dir, tokenizerFile))
	if err != nil {
		return nil, &ModelLoadError{Code: ErrTokenizerInvalid, Path: dir, Message: "unable to load tokenizer", Cause: err}
	}

	id2label, err := readLabels(filepath.Join(dir, labelsFile))
	if err != nil {
		return nil, &ModelLoadError{Code: ErrLabelsInvalid, Path: dir, Message: "unable to read label map", Cause: err}
	}

	if err := acquireRuntime(cfg.OrtLibrary); err != nil {
		return nil, &ModelLoadError{Code: ErrRuntimeUnavailable, Path: cfg.OrtLibrary, Message: "unable to initialize onnxruntime", Cause: err}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		_ = releaseRuntime()
		return nil, &ModelLoadError{Code: ErrModelInvalid, Path: modelPath, Message: "unable to inspect model", Cause: err}
	}
	inputNames := []string{"input_ids", "attention_mask"}
	typeIDs := false
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			inputNames = append(inputNames, in.Name)
			typeIDs = true
		}
	}
	if len(outputs) == 0 {
		_ = releaseRuntime()
		return nil, &ModelLoadError{Code: ErrModelInvalid, Path: modelPath, Message: "model has no outputs"}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputs[0].Name}, nil)
	if err != nil {
		_ = releaseRuntime()
		return nil, &ModelLoadError{Code: ErrModelInvalid, Path: modelPath, Message: "unable to load the model", Cause: err}
	}

	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = 512
	}
	return &OrtRecognizer{
		session:   session,
		tk:        tk,
		id2label:  id2label,
		typeIDs:   typeIDs,
		maxSeqLen: maxSeqLen,
		modelID:   filepath.Base(filepath.Clean(dir)),
	}, nil
}

// readLabels parses the id2label map of a HuggingFace config.json.
func readLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("config.json is not valid JSON")
	}
	labels := make(map[int]string)
	var parseErr error
	gjson.GetBytes(data, "id2label").ForEach(func(key, value gjson.Result) bool {
		id, err := strconv.Atoi(key.String())
		if err != nil {
			parseErr = fmt.Errorf("label id %q: %w", key.String(), err)
			return false
		}
		labels[id] = value.String()
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(labels) == 0 {
		return nil, errors.New("id2label is missing or empty")
	}
	return labels, nil
}

// ModelID returns the model directory name.
func (o *OrtRecognizer) ModelID() string {
	return o.modelID
}

// Recognize tokenizes sentence, runs the model and decodes BIO spans.
func (o *OrtRecognizer) Recognize(ctx context.Context, sentence string) ([]Mention, error) {
	if strings.TrimSpace(sentence) == "" {
		return []Mention{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc, err := o.tk.EncodeSingle(sentence, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := enc.GetIds()
	mask := enc.GetAttentionMask()
	special := enc.GetSpecialTokenMask()
	offsets := enc.GetOffsets()
	n := len(ids)
	if n > o.maxSeqLen {
		n = o.maxSeqLen
	}
	if n == 0 {
		return []Mention{}, nil
	}

	logits, numLabels, err := o.run(toInt64(ids[:n]), toInt64(mask[:n]))
	if err != nil {
		return nil, err
	}

	tokens := make([]taggedToken, 0, n)
	for i := 0; i < n; i++ {
		if i < len(special) && special[i] == 1 {
			continue
		}
		if i >= len(offsets) || len(offsets[i]) < 2 {
			continue
		}
		best := argmax(logits[i*numLabels : (i+1)*numLabels])
		tokens = append(tokens, taggedToken{
			Start: offsets[i][0],
			End:   offsets[i][1],
			Label: o.id2label[best],
		})
	}

	mentions := decodeSpans(sentence, tokens)
	if mentions == nil {
		mentions = []Mention{}
	}
	return mentions, nil
}

// run executes the session and returns the flattened [seq, labels] logits.
func (o *OrtRecognizer) run(ids, mask []int64) ([]float32, int, error) {
	shape := ort.NewShape(1, int64(len(ids)))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, 0, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := []ort.Value{idsTensor, maskTensor}
	if o.typeIDs {
		typeTensor, err := ort.NewTensor(shape, make([]int64, len(ids)))
		if err != nil {
			return nil, 0, fmt.Errorf("create token_type_ids tensor: %w", err)
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	outputs := []ort.Value{nil}
	if err := o.session.Run(inputs, outputs); err != nil {
		return nil, 0, fmt.Errorf("run model: %w", err)
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, 0, fmt.Errorf("unexpected logits type %T", outputs[0])
	}
	dims := logits.GetShape()
	if len(dims) != 3 || dims[1] != int64(len(ids)) {
		return nil, 0, fmt.Errorf("unexpected logits shape %v", dims)
	}
	numLabels := int(dims[2])
	data := make([]float32, len(logits.GetData()))
	copy(data, logits.GetData())
	return data, numLabels, nil
}

// Close releases ORT resources.
func (o *OrtRecognizer) Close() error {
	if o == nil {
		return nil
	}
	o.closeOnce.Do(func() {
		if o.session != nil {
			o.closeErr = o.session.Destroy()
		}
		if err := releaseRuntime(); err != nil && o.closeErr == nil {
			o.closeErr = err
		}
	})
	return o.closeErr
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
