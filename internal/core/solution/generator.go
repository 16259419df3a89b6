// Package solution turns a diagnosed disease into treatment advice, using an
// LLM when one is configured and a static template otherwise.
package solution

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/core/common"
	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/llm"
	"github.com/agenthands/padi/internal/logging"
)

const SourceFallback = "fallback"

type Generator struct {
	LLM     llm.LLMClient
	prompt  *template.Template
	timeout time.Duration
	logger  *zap.Logger
}

type promptData struct {
	Name        string
	Description string
	Confidence  string
	Method      model.Method
	Secondary   []model.ResultItem
}

// NewGenerator parses prompt (DefaultPrompt when empty). A nil client makes
// every generation use the fallback solution.
func NewGenerator(client llm.LLMClient, prompt string, timeout time.Duration, logger *zap.Logger) (*Generator, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	tmpl, err := template.New("solution").Option("missingkey=error").Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse solution prompt: %w", err)
	}
	return &Generator{
		LLM:     client,
		prompt:  tmpl,
		timeout: timeout,
		logger:  logging.OrNop(logger),
	}, nil
}

// Generate never fails: LLM errors degrade to the fallback solution and
// unparsable LLM text keeps its raw form next to a generic structure.
func (g *Generator) Generate(ctx context.Context, disease model.Disease, confidence float64, method model.Method, secondary []model.ResultItem) model.Solution {
	if g.LLM == nil {
		return Fallback(disease, secondary)
	}

	prompt, err := g.render(disease, confidence, method, secondary)
	if err != nil {
		g.logger.Error("solution prompt render failed", zap.Error(err))
		return Fallback(disease, secondary)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	provider := llm.ProviderName(g.LLM)
	response, err := g.LLM.Generate(ctx, prompt)
	if err != nil {
		g.logger.Warn("solution generation failed, using fallback",
			zap.String("provider", provider),
			zap.String("disease", disease.Code),
			zap.Error(err))
		return Fallback(disease, secondary)
	}

	structured, err := common.ParseJSON[model.StructuredSolution](response)
	if err != nil {
		g.logger.Debug("solution response is not JSON", zap.String("provider", provider), zap.Error(err))
		structured = generic()
	}
	return model.Solution{RawText: response, Structured: structured, Source: provider}
}

func (g *Generator) render(disease model.Disease, confidence float64, method model.Method, secondary []model.ResultItem) (string, error) {
	var b strings.Builder
	err := g.prompt.Execute(&b, promptData{
		Name:        disease.Name,
		Description: disease.Description,
		Confidence:  fmt.Sprintf("%.1f", confidence*100),
		Method:      method,
		Secondary:   secondary,
	})
	return b.String(), err
}

// Fallback is the static advice served when no LLM answer is available.
func Fallback(disease model.Disease, secondary []model.ResultItem) model.Solution {
	others := make([]model.OtherPrevention, 0, len(secondary))
	for _, item := range secondary {
		name := item.DiseaseName
		if name == "" {
			name = "Penyakit lain"
		}
		others = append(others, model.OtherPrevention{
			Disease: name,
			Steps: []string{
				"Gunakan bibit sehat dan bersertifikat",
				"Jaga sanitasi lahan dan sisa tanaman",
			},
		})
	}

	return model.Solution{
		RawText: "Solusi dasar untuk " + disease.Name,
		Structured: model.StructuredSolution{
			TreatmentSteps: []string{
				"Identifikasi gejala penyakit secara detail",
				"Pisahkan tanaman yang terinfeksi",
				"Lakukan penanganan sesuai jenis penyakit",
				"Pantau perkembangan tanaman",
			},
			Medicines: []model.Medicine{{
				Name:   "Konsultasi dengan penyuluh pertanian setempat",
				Kind:   "Sesuai diagnosis",
				Dosage: "Mengikuti petunjuk penggunaan",
				Usage:  "Aplikasi sesuai rekomendasi",
			}},
			UsageGuide: []string{
				"Gunakan alat pelindung diri saat aplikasi pestisida",
				"Aplikasikan pada pagi atau sore hari",
				"Hindari penggunaan berlebihan",
				"Ikuti jadwal aplikasi yang disarankan",
			},
			Prevention: []string{
				"Gunakan varietas tahan penyakit",
				"Jaga sanitasi lahan",
				"Kelola air dengan baik",
				"Lakukan rotasi tanaman",
			},
			OtherPrevention: others,
		},
		Source: SourceFallback,
	}
}

func generic() model.StructuredSolution {
	return model.StructuredSolution{
		TreatmentSteps: []string{
			"Identifikasi dan isolasi tanaman yang terinfeksi",
			"Buang bagian tanaman yang terinfeksi parah",
			"Aplikasikan penanganan sesuai rekomendasi",
		},
		Medicines: []model.Medicine{{
			Name:   "Fungisida atau bakterisida yang sesuai",
			Kind:   "Sesuai jenis penyakit",
			Dosage: "Ikuti petunjuk pada kemasan",
			Usage:  "Semprotkan secara merata",
		}},
		UsageGuide: []string{
			"Gunakan alat pelindung diri",
			"Aplikasikan pada pagi atau sore hari",
			"Hindari aplikasi saat hujan",
		},
		Prevention: []string{
			"Gunakan bibit berkualitas",
			"Jaga kebersihan lahan",
			"Rotasi tanaman",
		},
		OtherPrevention: []model.OtherPrevention{},
	}
}
