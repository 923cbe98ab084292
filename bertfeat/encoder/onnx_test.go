package encoder

import (
	"errors"
	"testing"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func bertInputs() []ort.InputOutputInfo {
	return []ort.InputOutputInfo{
		{Name: InputIDsName, Dimensions: ort.NewShape(-1, -1), DataType: ort.TensorElementDataTypeInt64},
		{Name: AttentionMaskName, Dimensions: ort.NewShape(-1, -1), DataType: ort.TensorElementDataTypeInt64},
		{Name: TokenTypeIDsName, Dimensions: ort.NewShape(-1, -1), DataType: ort.TensorElementDataTypeInt64},
	}
}

func bertOutputs(dim int64) []ort.InputOutputInfo {
	return []ort.InputOutputInfo{
		{Name: "output_0", Dimensions: ort.NewShape(-1, -1, dim), DataType: ort.TensorElementDataTypeFloat},
		{Name: "output_1", Dimensions: ort.NewShape(-1, dim), DataType: ort.TensorElementDataTypeFloat},
	}
}

func TestValidateModelIO(t *testing.T) {
	dim, err := ValidateModelIO(bertInputs(), bertOutputs(768), "output_0", "output_1")
	require.NoError(t, err)
	assert.Equal(t, 768, dim)
}

func TestValidateModelIOOutputOrderIrrelevant(t *testing.T) {
	outs := bertOutputs(384)
	outs[0], outs[1] = outs[1], outs[0]

	dim, err := ValidateModelIO(bertInputs(), outs, "output_0", "output_1")
	require.NoError(t, err)
	assert.Equal(t, 384, dim)
}

func TestValidateModelIOCustomOutputNames(t *testing.T) {
	outs := bertOutputs(128)
	outs[0].Name = "last_hidden_state"
	outs[1].Name = "pooler_output"

	dim, err := ValidateModelIO(bertInputs(), outs, "last_hidden_state", "pooler_output")
	require.NoError(t, err)
	assert.Equal(t, 128, dim)
}

func TestValidateModelIORejections(t *testing.T) {
	tests := []struct {
		name string
		ins  func() []ort.InputOutputInfo
		outs func() []ort.InputOutputInfo
	}{
		{
			name: "too few inputs",
			ins:  func() []ort.InputOutputInfo { return bertInputs()[:2] },
		},
		{
			name: "unexpected input name",
			ins: func() []ort.InputOutputInfo {
				ins := bertInputs()
				ins[1].Name = "segment_ids"
				return ins
			},
		},
		{
			name: "duplicate input name",
			ins: func() []ort.InputOutputInfo {
				ins := bertInputs()
				ins[1].Name = InputIDsName
				return ins
			},
		},
		{
			name: "input wrong dtype",
			ins: func() []ort.InputOutputInfo {
				ins := bertInputs()
				ins[0].DataType = ort.TensorElementDataTypeFloat
				return ins
			},
		},
		{
			name: "input wrong rank",
			ins: func() []ort.InputOutputInfo {
				ins := bertInputs()
				ins[2].Dimensions = ort.NewShape(-1)
				return ins
			},
		},
		{
			name: "too many outputs",
			outs: func() []ort.InputOutputInfo {
				return append(bertOutputs(768), ort.InputOutputInfo{
					Name:       "output_2",
					Dimensions: ort.NewShape(-1, 768),
					DataType:   ort.TensorElementDataTypeFloat,
				})
			},
		},
		{
			name: "missing token output",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[0].Name = "logits"
				return outs
			},
		},
		{
			name: "missing pooled output",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[1].Name = "probabilities"
				return outs
			},
		},
		{
			name: "token output wrong dtype",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[0].DataType = ort.TensorElementDataTypeInt64
				return outs
			},
		},
		{
			name: "token output wrong rank",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[0].Dimensions = ort.NewShape(-1, 768)
				return outs
			},
		},
		{
			name: "pooled output wrong rank",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[1].Dimensions = ort.NewShape(-1, -1, 768)
				return outs
			},
		},
		{
			name: "dynamic embedding dimension",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[0].Dimensions = ort.NewShape(-1, -1, -1)
				return outs
			},
		},
		{
			name: "dimension mismatch between outputs",
			outs: func() []ort.InputOutputInfo {
				outs := bertOutputs(768)
				outs[1].Dimensions = ort.NewShape(-1, 384)
				return outs
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ins := bertInputs()
			if tc.ins != nil {
				ins = tc.ins()
			}
			outs := bertOutputs(768)
			if tc.outs != nil {
				outs = tc.outs()
			}

			_, err := ValidateModelIO(ins, outs, "output_0", "output_1")
			require.Error(t, err)

			var cfgErr *internal.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %T: %v", err, err)
		})
	}
}

func TestNewONNXMissingModelPath(t *testing.T) {
	_, err := NewONNX(ONNXConfig{}, zerolog.Nop())
	require.Error(t, err)

	var cfgErr *internal.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
