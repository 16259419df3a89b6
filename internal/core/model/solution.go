package model

type Medicine struct {
	Name   string `json:"nama"`
	Kind   string `json:"jenis"`
	Dosage string `json:"dosis"`
	Usage  string `json:"cara_pakai"`
}

type OtherPrevention struct {
	Disease string   `json:"penyakit"`
	Steps   []string `json:"langkah"`
}

// StructuredSolution mirrors the JSON layout the frontend renders.
type StructuredSolution struct {
	TreatmentSteps  []string          `json:"langkah_penanganan"`
	Medicines       []Medicine        `json:"rekomendasi_obat"`
	UsageGuide      []string          `json:"panduan_penggunaan"`
	Prevention      []string          `json:"pencegahan"`
	OtherPrevention []OtherPrevention `json:"pencegahan_penyakit_lain"`
}

type Solution struct {
	RawText    string             `json:"raw_text"`
	Structured StructuredSolution `json:"structured"`
	Source     string             `json:"source"` // provider name or "fallback"
}
