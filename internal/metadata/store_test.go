package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diseaseCSV(n int) string {
	var b strings.Builder
	b.WriteString("index,disease_name,description,Possible Steps,image_url\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,Disease_%d,\"desc %d, with comma\",steps %d,http://img/%d.jpg\n", i, i, i, i, i)
	}
	return b.String()
}

func supplementCSV(n int) string {
	var b strings.Builder
	b.WriteString("index,disease_name,supplement name,supplement image,buy link\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,Disease_%d,Supp %d,http://simg/%d.jpg,http://buy/%d\n", i, i, i, i, i)
	}
	return b.String()
}

func TestLoad_Lookup(t *testing.T) {
	const n = 39
	store, err := Load(strings.NewReader(diseaseCSV(n)), strings.NewReader(supplementCSV(n)), n, Options{})
	require.NoError(t, err)
	assert.Equal(t, n, store.Len())
	assert.Empty(t, store.Mismatches())

	for i := 0; i < n; i++ {
		d, s, err := store.Lookup(i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Disease_%d", i), d.Name)
		assert.Equal(t, fmt.Sprintf("Supp %d", i), s.Name)
	}

	d, s, err := store.Lookup(25)
	require.NoError(t, err)
	assert.Equal(t, "desc 25, with comma", d.Description)
	assert.Equal(t, "steps 25", d.PreventionSteps)
	assert.Equal(t, "http://img/25.jpg", d.ReferenceImageURL)
	assert.Equal(t, "http://simg/25.jpg", s.ImageURL)
	assert.Equal(t, "http://buy/25", s.PurchaseLink)
}

func TestLookup_OutOfRange(t *testing.T) {
	const n = 5
	store, err := Load(strings.NewReader(diseaseCSV(n)), strings.NewReader(supplementCSV(n)), n, Options{})
	require.NoError(t, err)

	for _, idx := range []int{-1, n, n + 10} {
		_, _, err := store.Lookup(idx)
		var oor *IndexOutOfRangeError
		require.True(t, errors.As(err, &oor), "index %d", idx)
		assert.Equal(t, idx, oor.Index)
		assert.Equal(t, n, oor.N)
	}
}

func TestLoad_RowCountMismatch(t *testing.T) {
	_, err := Load(strings.NewReader(diseaseCSV(38)), strings.NewReader(supplementCSV(39)), 39, Options{})
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, "disease table", dle.Source)

	_, err = Load(strings.NewReader(diseaseCSV(39)), strings.NewReader(supplementCSV(40)), 39, Options{})
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, "supplement table", dle.Source)
}

func TestLoad_MissingColumn(t *testing.T) {
	bad := "disease_name,description,image_url\nA,b,c\n"
	_, err := Load(strings.NewReader(bad), strings.NewReader(supplementCSV(1)), 1, Options{})
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Contains(t, err.Error(), "Possible Steps")
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(strings.NewReader(""), strings.NewReader(supplementCSV(1)), 1, Options{})
	var dle *DataLoadError
	assert.True(t, errors.As(err, &dle))
}

func TestLoad_Windows1252(t *testing.T) {
	// 0x92 is a right single quotation mark in windows-1252.
	disease := "disease_name,description,Possible Steps,image_url\nApple___scab,It\x92s fungal,spray,u\n"
	supp := "supplement name,supplement image,buy link\nKatyayani,i,b\n"

	store, err := Load(strings.NewReader(disease), strings.NewReader(supp), 1, Options{})
	require.NoError(t, err)
	d, _, err := store.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "It’s fungal", d.Description)

	_, err = Load(strings.NewReader(disease), strings.NewReader(supp), 1, Options{Encoding: "latin-9"})
	var dle *DataLoadError
	assert.True(t, errors.As(err, &dle))
}

func TestLoad_UTF8(t *testing.T) {
	disease := "disease_name,description,Possible Steps,image_url\nApple___scab,It’s fungal,spray,u\n"
	supp := "supplement name,supplement image,buy link\nKatyayani,i,b\n"

	store, err := Load(strings.NewReader(disease), strings.NewReader(supp), 1, Options{Encoding: EncodingUTF8})
	require.NoError(t, err)
	d, _, _ := store.Lookup(0)
	assert.Equal(t, "It’s fungal", d.Description)
}

func TestLoad_SupplementMisaligned(t *testing.T) {
	supp := strings.Replace(supplementCSV(3), "1,Disease_1,", "1,Disease_2,", 1)
	_, err := Load(strings.NewReader(diseaseCSV(3)), strings.NewReader(supp), 3, Options{StrictAlignment: true})
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Contains(t, err.Error(), "row 1")
}

func TestLoad_SupplementNamesDifferLenient(t *testing.T) {
	// Published tables name supplements by folder label and diseases by display name.
	disease := "disease_name,description,Possible Steps,image_url\nApple : Scab,d,s,u\nTomato : Healthy,d,s,u\n"
	supp := "disease_name,supplement name,supplement image,buy link\nApple___Apple_scab,A,i,b\nTomato : Healthy,B,i,b\n"

	store, err := Load(strings.NewReader(disease), strings.NewReader(supp), 2, Options{})
	require.NoError(t, err)
	require.Len(t, store.Mismatches(), 1)
	assert.Contains(t, store.Mismatches()[0], "row 0")

	_, s, err := store.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "A", s.Name)
}

func TestLoad_Labels(t *testing.T) {
	labels := []string{"Disease_0", "Disease_1", "Disease_2"}
	_, err := Load(strings.NewReader(diseaseCSV(3)), strings.NewReader(supplementCSV(3)), 3, Options{Labels: labels})
	assert.NoError(t, err)

	labels[2] = "Tomato___healthy"
	_, err = Load(strings.NewReader(diseaseCSV(3)), strings.NewReader(supplementCSV(3)), 3, Options{Labels: labels})
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, "model labels", dle.Source)

	_, err = Load(strings.NewReader(diseaseCSV(3)), strings.NewReader(supplementCSV(3)), 3, Options{Labels: labels[:2]})
	assert.True(t, errors.As(err, &dle))
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	dp := filepath.Join(dir, "disease_info.csv")
	sp := filepath.Join(dir, "supplement_info.csv")
	require.NoError(t, os.WriteFile(dp, []byte(diseaseCSV(4)), 0o644))
	require.NoError(t, os.WriteFile(sp, []byte(supplementCSV(4)), 0o644))

	store, err := LoadFiles(dp, sp, 4, Options{})
	require.NoError(t, err)
	assert.Len(t, store.Diseases(), 4)

	_, err = LoadFiles(filepath.Join(dir, "missing.csv"), sp, 4, Options{})
	var dle *DataLoadError
	assert.True(t, errors.As(err, &dle))
}
