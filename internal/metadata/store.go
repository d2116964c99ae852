// Package metadata holds the read-only disease and supplement tables that are
// indexed by the classifier's class index.
package metadata

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Store maps a class index to its disease and supplement rows. It is never
// mutated after Load, so concurrent Lookup calls need no locking.
type Store struct {
	diseases    []DiseaseRecord
	supplements []SupplementRecord
	mismatches  []string
}

// Options tune how the tables are read.
type Options struct {
	// Encoding of both sources. Defaults to windows-1252.
	Encoding string
	// Labels, when non-empty, must match the disease_name column row by row.
	Labels []string
	// StrictAlignment fails Load when the supplement table's optional
	// disease_name column disagrees with the disease table. Otherwise the
	// disagreements are reported by Mismatches.
	StrictAlignment bool
}

// Load reads both tables and checks that each has exactly n rows.
func Load(diseaseSrc, supplementSrc io.Reader, n int, opts Options) (*Store, error) {
	diseases, err := loadDiseases(diseaseSrc, n, opts.Encoding)
	if err != nil {
		return nil, &DataLoadError{Source: "disease table", Err: err}
	}
	supplements, err := loadSupplements(supplementSrc, n, opts.Encoding)
	if err != nil {
		return nil, &DataLoadError{Source: "supplement table", Err: err}
	}

	var mismatches []string
	for i, s := range supplements {
		if s.disease == "" || sameLabel(s.disease, diseases[i].Name) {
			continue
		}
		err := errors.Errorf("row %d names %q, disease table has %q", i, s.disease, diseases[i].Name)
		if opts.StrictAlignment {
			return nil, &DataLoadError{Source: "supplement table", Err: err}
		}
		mismatches = append(mismatches, err.Error())
	}

	if len(opts.Labels) > 0 {
		if len(opts.Labels) != n {
			return nil, &DataLoadError{
				Source: "model labels",
				Err:    errors.Errorf("got %d labels, want %d", len(opts.Labels), n),
			}
		}
		for i, label := range opts.Labels {
			if !sameLabel(label, diseases[i].Name) {
				return nil, &DataLoadError{
					Source: "model labels",
					Err:    errors.Errorf("class %d is %q, disease table has %q", i, label, diseases[i].Name),
				}
			}
		}
	}

	return &Store{diseases: diseases, supplements: supplements, mismatches: mismatches}, nil
}

// LoadFiles opens the two table files and calls Load.
func LoadFiles(diseasePath, supplementPath string, n int, opts Options) (*Store, error) {
	df, err := os.Open(diseasePath)
	if err != nil {
		return nil, &DataLoadError{Source: diseasePath, Err: err}
	}
	defer df.Close()

	sf, err := os.Open(supplementPath)
	if err != nil {
		return nil, &DataLoadError{Source: supplementPath, Err: err}
	}
	defer sf.Close()

	return Load(df, sf, n, opts)
}

// Lookup returns both rows for index.
func (s *Store) Lookup(index int) (DiseaseRecord, SupplementRecord, error) {
	if index < 0 || index >= len(s.diseases) {
		return DiseaseRecord{}, SupplementRecord{}, &IndexOutOfRangeError{Index: index, N: len(s.diseases)}
	}
	return s.diseases[index], s.supplements[index], nil
}

// Mismatches lists supplement rows whose disease_name differs from the
// disease table. Always empty when loaded with StrictAlignment.
func (s *Store) Mismatches() []string { return s.mismatches }

// Len is the number of classes the store covers.
func (s *Store) Len() int { return len(s.diseases) }

// Diseases returns a copy of the disease table in class order.
func (s *Store) Diseases() []DiseaseRecord {
	out := make([]DiseaseRecord, len(s.diseases))
	copy(out, s.diseases)
	return out
}

func loadDiseases(r io.Reader, n int, encoding string) ([]DiseaseRecord, error) {
	t, err := readTable(r, encoding, ColDiseaseName, ColDescription, ColPossibleSteps, ColImageURL)
	if err != nil {
		return nil, err
	}
	if len(t.rows) != n {
		return nil, errors.Errorf("got %d rows, want %d", len(t.rows), n)
	}

	records := make([]DiseaseRecord, n)
	for i := range t.rows {
		records[i] = DiseaseRecord{
			Name:              t.get(i, ColDiseaseName),
			Description:       t.get(i, ColDescription),
			PreventionSteps:   t.get(i, ColPossibleSteps),
			ReferenceImageURL: t.get(i, ColImageURL),
		}
	}
	return records, nil
}

func loadSupplements(r io.Reader, n int, encoding string) ([]SupplementRecord, error) {
	t, err := readTable(r, encoding, ColSupplementName, ColSupplementImg, ColBuyLink)
	if err != nil {
		return nil, err
	}
	if len(t.rows) != n {
		return nil, errors.Errorf("got %d rows, want %d", len(t.rows), n)
	}

	records := make([]SupplementRecord, n)
	for i := range t.rows {
		records[i] = SupplementRecord{
			Name:         t.get(i, ColSupplementName),
			ImageURL:     t.get(i, ColSupplementImg),
			PurchaseLink: t.get(i, ColBuyLink),
			disease:      t.get(i, ColDiseaseName),
		}
	}
	return records, nil
}

func sameLabel(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
