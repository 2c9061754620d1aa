package embedder

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortInit guards process-wide ONNX Runtime initialization.
var ortInit struct {
	once sync.Once
	err  error
}

func initRuntime(libraryPath string) error {
	ortInit.once.Do(func() {
		ort.SetSharedLibraryPath(libraryPath)
		ortInit.err = ort.InitializeEnvironment()
	})
	return ortInit.err
}

// ONNX runs a BERT-style sentence-embedding model through ONNX Runtime and
// mean-pools the token states into a single vector. The session is not
// assumed reentrant, so inference calls are serialized with a mutex; the
// lock covers only the model call, never any downstream work.
type ONNX struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tok        *wordPieceTokenizer
	inputNames []string
	dim        int
}

// NewONNX loads the embedding model and its vocabulary. The model must
// declare input_ids and attention_mask inputs (token_type_ids is fed zeros
// when present) and a single [batch, seq, dim] output.
func NewONNX(modelPath, vocabPath, libraryPath string) (*ONNX, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("embedder: onnx runtime init: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("embedder: reading model info: %w", err)
	}

	declared := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		declared[in.Name] = true
	}
	if !declared["input_ids"] || !declared["attention_mask"] {
		return nil, fmt.Errorf("embedder: model must declare input_ids and attention_mask inputs")
	}
	inputNames := []string{"input_ids", "attention_mask"}
	if declared["token_type_ids"] {
		inputNames = append(inputNames, "token_type_ids")
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("embedder: model declares no outputs")
	}
	outDims := outputs[0].Dimensions
	if len(outDims) != 3 {
		return nil, fmt.Errorf("embedder: expected [batch, seq, dim] output, got %v", outDims)
	}
	dim := int(outDims[2])

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("embedder: session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(2)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("embedder: creating session: %w", err)
	}

	tok, err := loadTokenizer(vocabPath)
	if err != nil {
		session.Destroy()
		return nil, err
	}

	return &ONNX{session: session, tok: tok, inputNames: inputNames, dim: dim}, nil
}

// Dim returns the embedding dimensionality.
func (e *ONNX) Dim() int {
	return e.dim
}

// Embed tokenizes the text, runs the model, and mean-pools the token states.
func (e *ONNX) Embed(text string) ([]float32, error) {
	inputIDs, attentionMask := e.tok.encode(text)
	seqLen := int64(len(inputIDs))

	hidden, err := e.run(inputIDs, attentionMask, seqLen)
	if err != nil {
		return nil, err
	}

	return maskedMean(hidden, attentionMask, e.dim), nil
}

func (e *ONNX) run(inputIDs, attentionMask []int64, seqLen int64) ([]float32, error) {
	shape := ort.NewShape(1, seqLen)

	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("embedder: input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("embedder: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := []ort.Value{idsTensor, maskTensor}
	if len(e.inputNames) == 3 {
		typesTensor, err := ort.NewTensor(shape, make([]int64, seqLen))
		if err != nil {
			return nil, fmt.Errorf("embedder: token_type_ids tensor: %w", err)
		}
		defer typesTensor.Destroy()
		inputs = append(inputs, typesTensor)
	}

	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(e.dim)))
	if err != nil {
		return nil, fmt.Errorf("embedder: output tensor: %w", err)
	}
	defer outTensor.Destroy()

	e.mu.Lock()
	err = e.session.Run(inputs, []ort.Value{outTensor})
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("embedder: inference: %w", err)
	}

	data := outTensor.GetData()
	hidden := make([]float32, len(data))
	copy(hidden, data)
	return hidden, nil
}

// Close releases the ONNX session.
func (e *ONNX) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
