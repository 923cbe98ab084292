package encoder

import (
	"context"
	"fmt"
	"sync"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// BERT input names. These are fixed by the HuggingFace export tool.
const (
	InputIDsName      = "input_ids"
	AttentionMaskName = "attention_mask"
	TokenTypeIDsName  = "token_type_ids"
)

// ONNXConfig configures an ONNX-backed encoder session.
type ONNXConfig struct {
	// ModelPath locates the exported BERT model.
	ModelPath string
	// TokenOutput and PooledOutput name the two model outputs. Empty values
	// fall back to the export tool's defaults.
	TokenOutput  string
	PooledOutput string
	// ExecutionProvider selects the ORT backend: "cuda", "tensorrt",
	// "coreml", "dml", or "cpu" (default).
	ExecutionProvider string
	// DeviceID is used by device-addressed EPs such as DirectML.
	DeviceID int
}

// ONNXEncoder runs a BERT ONNX model behind the Encoder interface. The
// session is created once during construction after the model's IO contract
// has been validated, and released exactly once by Close.
type ONNXEncoder struct {
	cfg       ONNXConfig
	dim       int
	session   *ort.DynamicAdvancedSession
	log       zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewONNX validates the model at cfg.ModelPath and opens a session for it.
// Any IO-contract mismatch is a *internal.ConfigError; initialization does
// not proceed past it.
func NewONNX(cfg ONNXConfig, log zerolog.Logger) (*ONNXEncoder, error) {
	if cfg.ModelPath == "" {
		return nil, internal.NewConfigError("model.path", "", "missing")
	}
	if cfg.TokenOutput == "" {
		cfg.TokenOutput = internal.DefaultTokenOutput
	}
	if cfg.PooledOutput == "" {
		cfg.PooledOutput = internal.DefaultPooledOutput
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	ins, outs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("get model IO info: %w", err)
	}
	dim, err := ValidateModelIO(ins, outs, cfg.TokenOutput, cfg.PooledOutput)
	if err != nil {
		return nil, err
	}

	opts := sessionOptions(cfg.ExecutionProvider, cfg.DeviceID)
	inputNames := []string{InputIDsName, AttentionMaskName, TokenTypeIDsName}
	outputNames := []string{cfg.TokenOutput, cfg.PooledOutput}

	var session *ort.DynamicAdvancedSession
	if opts != nil {
		session, err = ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, opts)
		_ = opts.Destroy()
	} else {
		session, err = ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	log.Info().
		Str("model", cfg.ModelPath).
		Int("dimensions", dim).
		Str("execution_provider", cfg.ExecutionProvider).
		Msg("onnx encoder session ready")

	return &ONNXEncoder{cfg: cfg, dim: dim, session: session, log: log}, nil
}

// ValidateModelIO checks the model's IO contract: exactly three int64 inputs
// with the BERT input names, exactly two float outputs where tokenOutput has
// rank 3 and pooledOutput has rank 2, and a trailing dimension D that agrees
// between the two. It returns D.
func ValidateModelIO(ins, outs []ort.InputOutputInfo, tokenOutput, pooledOutput string) (int, error) {
	if len(ins) != 3 {
		return 0, internal.NewConfigError("model inputs", fmt.Sprintf("%d", len(ins)), "expected exactly 3 inputs")
	}
	wanted := map[string]bool{InputIDsName: false, AttentionMaskName: false, TokenTypeIDsName: false}
	for _, in := range ins {
		seen, ok := wanted[in.Name]
		if !ok {
			return 0, internal.NewConfigError("model input "+in.Name, fmt.Sprintf("%v", in.Dimensions), "unexpected input name")
		}
		if seen {
			return 0, internal.NewConfigError("model input "+in.Name, "", "duplicate input name")
		}
		if in.DataType != ort.TensorElementDataTypeInt64 {
			return 0, internal.NewConfigError("model input "+in.Name, fmt.Sprintf("%v", in.DataType), "expected int64 tensor")
		}
		if len(in.Dimensions) != 2 {
			return 0, internal.NewConfigError("model input "+in.Name, fmt.Sprintf("%v", in.Dimensions), "expected rank-2 tensor")
		}
		wanted[in.Name] = true
	}

	if len(outs) != 2 {
		return 0, internal.NewConfigError("model outputs", fmt.Sprintf("%d", len(outs)), "expected exactly 2 outputs")
	}
	var tokenInfo, pooledInfo *ort.InputOutputInfo
	for i := range outs {
		switch outs[i].Name {
		case tokenOutput:
			tokenInfo = &outs[i]
		case pooledOutput:
			pooledInfo = &outs[i]
		}
	}
	if tokenInfo == nil {
		return 0, internal.NewConfigError("model output "+tokenOutput, "", "missing token embedding output")
	}
	if pooledInfo == nil {
		return 0, internal.NewConfigError("model output "+pooledOutput, "", "missing pooled output")
	}
	if tokenInfo.DataType != ort.TensorElementDataTypeFloat {
		return 0, internal.NewConfigError("model output "+tokenOutput, fmt.Sprintf("%v", tokenInfo.DataType), "expected float tensor")
	}
	if pooledInfo.DataType != ort.TensorElementDataTypeFloat {
		return 0, internal.NewConfigError("model output "+pooledOutput, fmt.Sprintf("%v", pooledInfo.DataType), "expected float tensor")
	}
	if len(tokenInfo.Dimensions) != 3 {
		return 0, internal.NewConfigError("model output "+tokenOutput, fmt.Sprintf("%v", tokenInfo.Dimensions), "expected rank-3 tensor")
	}
	if len(pooledInfo.Dimensions) != 2 {
		return 0, internal.NewConfigError("model output "+pooledOutput, fmt.Sprintf("%v", pooledInfo.Dimensions), "expected rank-2 tensor")
	}

	dim := tokenInfo.Dimensions[2]
	if dim <= 0 {
		return 0, internal.NewConfigError("model output "+tokenOutput, fmt.Sprintf("%v", tokenInfo.Dimensions), "embedding dimension must be static")
	}
	if pooledInfo.Dimensions[1] != dim {
		return 0, internal.NewConfigError("model outputs", fmt.Sprintf("%d vs %d", dim, pooledInfo.Dimensions[1]), "embedding dimensions disagree between outputs")
	}
	return int(dim), nil
}

// Dimensions returns the embedding dimensionality discovered at load time.
func (e *ONNXEncoder) Dimensions() int { return e.dim }

// Invoke runs the model over one assembled input of length L and returns the
// L x D embedding matrix and the pooled vector. Failures wrap ErrEncode.
func (e *ONNXEncoder) Invoke(ctx context.Context, ids, mask, tokenTypes []int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if len(ids) != len(mask) || len(ids) != len(tokenTypes) {
		return nil, fmt.Errorf("%w: input lengths disagree (%d, %d, %d)", ErrEncode, len(ids), len(mask), len(tokenTypes))
	}
	seqLen := len(ids)

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: ids tensor: %v", ErrEncode, err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("%w: mask tensor: %v", ErrEncode, err)
	}
	defer maskTensor.Destroy()
	typesTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, fmt.Errorf("%w: token type tensor: %v", ErrEncode, err)
	}
	defer typesTensor.Destroy()

	outs := make([]ort.Value, 2)
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outs); err != nil {
		return nil, fmt.Errorf("%w: run session: %v", ErrEncode, err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	tokenTensor, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s output type", ErrEncode, e.cfg.TokenOutput)
	}
	pooledTensor, ok := outs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s output type", ErrEncode, e.cfg.PooledOutput)
	}

	tokenShape := tokenTensor.GetShape()
	if len(tokenShape) != 3 || tokenShape[1] != int64(seqLen) || tokenShape[2] != int64(e.dim) {
		return nil, fmt.Errorf("%w: unexpected %s shape %v", ErrEncode, e.cfg.TokenOutput, tokenShape)
	}
	pooledShape := pooledTensor.GetShape()
	if len(pooledShape) != 2 || pooledShape[1] != int64(e.dim) {
		return nil, fmt.Errorf("%w: unexpected %s shape %v", ErrEncode, e.cfg.PooledOutput, pooledShape)
	}

	tokenData := tokenTensor.GetData()
	embeddings := make([][]float32, seqLen)
	for i := 0; i < seqLen; i++ {
		row := make([]float32, e.dim)
		copy(row, tokenData[i*e.dim:(i+1)*e.dim])
		embeddings[i] = row
	}
	pooled := make([]float32, e.dim)
	copy(pooled, pooledTensor.GetData())

	return &Result{Embeddings: embeddings, Pooled: pooled}, nil
}

// Close releases the session. Subsequent calls are no-ops returning the
// first result.
func (e *ONNXEncoder) Close() error {
	e.closeOnce.Do(func() {
		if e.session != nil {
			e.closeErr = e.session.Destroy()
			e.session = nil
		}
	})
	return e.closeErr
}
