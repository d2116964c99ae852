// Package result joins a predicted class index with its metadata rows.
package result

import (
	"strconv"

	"github.com/Brownie44l1/plantdoc-api/internal/metadata"
)

// Payload is the JSON body returned for a successful prediction.
type Payload struct {
	Title              string `json:"title"`
	Description        string `json:"desc"`
	PreventionSteps    string `json:"prevent"`
	DiseaseImageURL    string `json:"image_url"`
	PredictedIndex     string `json:"pred"`
	SupplementName     string `json:"sname"`
	SupplementImageURL string `json:"simage"`
	PurchaseLink       string `json:"buy_link"`
}

// Lookuper is satisfied by *metadata.Store.
type Lookuper interface {
	Lookup(index int) (metadata.DiseaseRecord, metadata.SupplementRecord, error)
}

// Assemble builds the payload for index. An out-of-range index surfaces as
// *metadata.IndexOutOfRangeError.
func Assemble(index int, store Lookuper) (*Payload, error) {
	disease, supplement, err := store.Lookup(index)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Title:              disease.Name,
		Description:        disease.Description,
		PreventionSteps:    disease.PreventionSteps,
		DiseaseImageURL:    disease.ReferenceImageURL,
		PredictedIndex:     strconv.Itoa(index),
		SupplementName:     supplement.Name,
		SupplementImageURL: supplement.ImageURL,
		PurchaseLink:       supplement.PurchaseLink,
	}, nil
}
