package solution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core/model"
)

type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
	Deadline bool
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	_, m.Deadline = ctx.Deadline()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMClient) Provider() string { return "mock" }

var blas = model.Disease{ID: 1, Code: "P01", Name: "Blas", Description: "Jamur Pyricularia oryzae"}

var secondary = []model.ResultItem{{DiseaseID: 3, DiseaseCode: "P03", DiseaseName: "Tungro", CFFinal: 0.47}}

func TestGenerate_ParsesLLMJSON(t *testing.T) {
	mock := &MockLLMClient{Response: "```json\n" + `{
		"langkah_penanganan": ["Cabut tanaman sakit"],
		"rekomendasi_obat": [{"nama": "Trisiklazol", "jenis": "Fungisida", "dosis": "1 ml/l", "cara_pakai": "Semprot"}],
		"panduan_penggunaan": ["Pagi hari"],
		"pencegahan": ["Varietas tahan"],
		"pencegahan_penyakit_lain": [{"penyakit": "Tungro", "langkah": ["Kendalikan wereng hijau"]}]
	}` + "\n```"}
	g, err := NewGenerator(mock, "", time.Second, nil)
	require.NoError(t, err)

	sol := g.Generate(context.Background(), blas, 0.82, model.MethodCertaintyFactor, secondary)

	assert.Equal(t, "mock", sol.Source)
	assert.Equal(t, mock.Response, sol.RawText)
	assert.Equal(t, []string{"Cabut tanaman sakit"}, sol.Structured.TreatmentSteps)
	require.Len(t, sol.Structured.Medicines, 1)
	assert.Equal(t, "Trisiklazol", sol.Structured.Medicines[0].Name)
	assert.Equal(t, "Tungro", sol.Structured.OtherPrevention[0].Disease)

	require.Len(t, mock.Prompts, 1)
	prompt := mock.Prompts[0]
	assert.Contains(t, prompt, "Penyakit: Blas")
	assert.Contains(t, prompt, "Tingkat Keyakinan: 82.0%")
	assert.Contains(t, prompt, "Metode Diagnosis: certainty_factor")
	assert.Contains(t, prompt, "- Tungro (P03)")
	assert.True(t, mock.Deadline, "generation runs under the configured timeout")
}

func TestGenerate_NoSecondarySection(t *testing.T) {
	mock := &MockLLMClient{Response: "{}"}
	g, err := NewGenerator(mock, "", 0, nil)
	require.NoError(t, err)

	g.Generate(context.Background(), blas, 0.9, model.MethodForwardChaining, nil)
	assert.NotContains(t, mock.Prompts[0], "PENYAKIT LAIN")
	assert.False(t, mock.Deadline)
}

func TestGenerate_UnparsableTextKeepsRaw(t *testing.T) {
	mock := &MockLLMClient{Response: "Semprot fungisida dua kali seminggu."}
	g, err := NewGenerator(mock, "", 0, nil)
	require.NoError(t, err)

	sol := g.Generate(context.Background(), blas, 0.9, model.MethodForwardChaining, nil)
	assert.Equal(t, "mock", sol.Source)
	assert.Equal(t, mock.Response, sol.RawText)
	assert.Len(t, sol.Structured.TreatmentSteps, 3)
	assert.NotNil(t, sol.Structured.OtherPrevention)
}

func TestGenerate_LLMErrorFallsBack(t *testing.T) {
	mock := &MockLLMClient{Err: errors.New("rate limited")}
	g, err := NewGenerator(mock, "", 0, nil)
	require.NoError(t, err)

	sol := g.Generate(context.Background(), blas, 0.9, model.MethodForwardChaining, secondary)
	assert.Equal(t, SourceFallback, sol.Source)
	assert.Equal(t, "Solusi dasar untuk Blas", sol.RawText)
	require.Len(t, sol.Structured.OtherPrevention, 1)
	assert.Equal(t, "Tungro", sol.Structured.OtherPrevention[0].Disease)
}

func TestGenerate_NilClient(t *testing.T) {
	g, err := NewGenerator(nil, "", 0, nil)
	require.NoError(t, err)

	sol := g.Generate(context.Background(), blas, 0.9, model.MethodForwardChaining, nil)
	assert.Equal(t, SourceFallback, sol.Source)
	assert.Empty(t, sol.Structured.OtherPrevention)
}

func TestGenerate_CustomPrompt(t *testing.T) {
	mock := &MockLLMClient{Response: "{}"}
	g, err := NewGenerator(mock, "Solusi untuk {{.Name}} ({{.Confidence}})", 0, nil)
	require.NoError(t, err)

	g.Generate(context.Background(), blas, 0.5, model.MethodCertaintyFactor, nil)
	assert.Equal(t, "Solusi untuk Blas (50.0)", mock.Prompts[0])
}

func TestGenerate_PromptExecErrorFallsBack(t *testing.T) {
	mock := &MockLLMClient{Response: "{}"}
	g, err := NewGenerator(mock, "{{.Unknown}}", 0, nil)
	require.NoError(t, err)

	sol := g.Generate(context.Background(), blas, 0.5, model.MethodCertaintyFactor, nil)
	assert.Equal(t, SourceFallback, sol.Source)
	assert.Empty(t, mock.Prompts)
}

func TestNewGenerator_BadTemplate(t *testing.T) {
	_, err := NewGenerator(nil, "{{.Name", 0, nil)
	assert.Error(t, err)
}

func TestFallback_UnnamedSecondary(t *testing.T) {
	sol := Fallback(blas, []model.ResultItem{{DiseaseCode: "P09"}})
	assert.Equal(t, "Penyakit lain", sol.Structured.OtherPrevention[0].Disease)
}
