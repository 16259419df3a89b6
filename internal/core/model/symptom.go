package model

// Category groups symptoms by the plant part they show on. Informational only.
type Category string

const (
	CategoryLeaf    Category = "daun"
	CategoryStem    Category = "batang"
	CategoryRoot    Category = "akar"
	CategoryGrain   Category = "bulir"
	CategoryPanicle Category = "malai"
	CategoryGrowth  Category = "pertumbuhan"
)

type Symptom struct {
	ID          int64    `json:"id"`
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Category    Category `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	MB          float64  `json:"mb"` // Measure of belief, 0..1
	MD          float64  `json:"md"` // Measure of disbelief, 0..1
	Active      bool     `json:"active"`
}
