package solution

// DefaultPrompt is rendered with promptData.
const DefaultPrompt = `Anda adalah ahli pertanian spesialis penyakit tanaman padi. Berikan solusi lengkap untuk penyakit berikut:

Penyakit: {{.Name}}
Deskripsi: {{.Description}}
Tingkat Keyakinan: {{.Confidence}}%
Metode Diagnosis: {{.Method}}
{{- if .Secondary}}

PENYAKIT LAIN YANG MUNGKIN:
{{- range .Secondary}}
- {{.DiseaseName}} ({{.DiseaseCode}})
{{- end}}
{{- end}}

Jawab hanya dengan satu objek JSON dengan struktur berikut:
{
  "langkah_penanganan": ["Langkah 1: ...", "Langkah 2: ..."],
  "rekomendasi_obat": [
    { "nama": "Nama obat", "jenis": "Fungisida/Bakterisida/Insektisida", "dosis": "Dosis anjuran", "cara_pakai": "Cara penggunaan" }
  ],
  "panduan_penggunaan": ["Panduan 1: ..."],
  "pencegahan": ["Pencegahan 1: ..."],
  "pencegahan_penyakit_lain": [
    { "penyakit": "Nama penyakit lain", "langkah": ["Langkah singkat 1", "Langkah singkat 2"] }
  ]
}

Berikan 3 sampai 5 poin untuk setiap kategori.
Untuk penyakit lain cukup 2 sampai 3 langkah pencegahan singkat.
Jika tidak ada penyakit lain, isi "pencegahan_penyakit_lain" dengan array kosong.
Utamakan solusi praktis yang dapat diterapkan petani Indonesia.
`
