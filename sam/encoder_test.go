package sam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmbedding(t *testing.T) *Embedding {
	emb, err := NewEmbedding(make([]float32, 4), []int64{1, 1, 2, 2})
	require.NoError(t, err)
	return emb
}

func TestEncodeInputs_MissingInput(t *testing.T) {
	scale, err := NewModelScale(800, 600)
	require.NoError(t, err)
	emb := testEmbedding(t)
	clicks := []Click{{X: 1, Y: 1, Label: LabelForeground}}

	_, err = EncodeInputs(nil, emb, scale, nil)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = EncodeInputs(clicks, nil, scale, nil)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = EncodeInputs(clicks, emb, nil, nil)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestEncodeInputs_PointsGetPadding(t *testing.T) {
	scale, err := NewModelScale(2048, 1024) // samScale = 0.5
	require.NoError(t, err)

	clicks := []Click{
		{X: 100, Y: 200, Label: LabelForeground},
		{X: 300, Y: 400, Label: LabelBackground},
	}
	in, err := EncodeInputs(clicks, testEmbedding(t), scale, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, in.NumPoints())
	assert.Equal(t, []float32{50, 100, 150, 200, 0, 0}, in.PointCoords)
	assert.Equal(t, []float32{1, 0, -1}, in.PointLabels)
	assert.Equal(t, [2]float32{1024, 2048}, in.OrigImSize)
	assert.Equal(t, float32(0), in.HasMaskInput)
	assert.Len(t, in.MaskInput, LowResSize*LowResSize)
	for _, v := range in.MaskInput {
		if v != 0 {
			t.Fatal("mask_input 应全为 0")
		}
	}
}

func TestEncodeInputs_LastBoxWins(t *testing.T) {
	scale, err := NewModelScale(1024, 512) // samScale = 1
	require.NoError(t, err)

	clicks := []Click{
		{X: 1, Y: 1, Label: LabelBoxTopLeft},
		{X: 9, Y: 9, Label: LabelBoxBotRight},
		{X: 5, Y: 5, Label: LabelForeground},
		{X: 2, Y: 3, Label: LabelBoxTopLeft},
		{X: 20, Y: 30, Label: LabelBoxBotRight},
	}
	in, err := EncodeInputs(clicks, testEmbedding(t), scale, nil)
	require.NoError(t, err)

	// 普通点在前，最后一组角点在后，没有占位点
	assert.Equal(t, []float32{5, 5, 2, 3, 20, 30}, in.PointCoords)
	assert.Equal(t, []float32{1, 2, 3}, in.PointLabels)
}

func TestEncodeInputs_LoneCornerIsDegenerate(t *testing.T) {
	scale, err := NewModelScale(1024, 1024)
	require.NoError(t, err)

	clicks := []Click{{X: 7, Y: 8, Label: LabelBoxTopLeft}}
	in, err := EncodeInputs(clicks, testEmbedding(t), scale, nil)
	require.NoError(t, err)

	assert.Equal(t, []float32{7, 8, 0, 0}, in.PointCoords)
	assert.Equal(t, []float32{2, -1}, in.PointLabels)
}

func TestEncodeInputs_MaskHint(t *testing.T) {
	scale, err := NewModelScale(640, 480)
	require.NoError(t, err)
	clicks := []Click{{X: 10, Y: 10, Label: LabelForeground}}

	hint := &MaskHint{Data: make([]float32, LowResSize*LowResSize)}
	hint.Data[42] = 3.5
	in, err := EncodeInputs(clicks, testEmbedding(t), scale, hint)
	require.NoError(t, err)
	assert.Equal(t, float32(1), in.HasMaskInput)
	assert.Equal(t, float32(3.5), in.MaskInput[42])

	// 输入不应与提示共享内存
	hint.Data[42] = 0
	assert.Equal(t, float32(3.5), in.MaskInput[42])

	_, err = EncodeInputs(clicks, testEmbedding(t), scale, &MaskHint{Data: make([]float32, 10)})
	assert.Error(t, err)
}
