package metadata

// DiseaseRecord is one row of the disease table.
type DiseaseRecord struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	PreventionSteps   string `json:"prevention_steps"`
	ReferenceImageURL string `json:"reference_image_url"`
}

// SupplementRecord is one row of the supplement table.
type SupplementRecord struct {
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	PurchaseLink string `json:"purchase_link"`

	// disease is the optional disease_name column used for alignment checks.
	disease string
}

// Column headers of the published PlantDoc tables.
const (
	ColDiseaseName    = "disease_name"
	ColDescription    = "description"
	ColPossibleSteps  = "Possible Steps"
	ColImageURL       = "image_url"
	ColSupplementName = "supplement name"
	ColSupplementImg  = "supplement image"
	ColBuyLink        = "buy link"
)
