package ownership

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/seenimoa/diligenceops/pkg/models"
)

func holder(name string, shares float64) models.InstitutionalHolder {
	return models.InstitutionalHolder{HolderName: name, Shares: shares, HolderType: models.HolderInstitutional}
}

func TestClassifyLabelsPassiveManagers(t *testing.T) {
	got := Classify([]models.InstitutionalHolder{
		holder("The Vanguard Group", 300),
		holder("BLACKROCK INC.", 200),
		holder("Berkshire Hathaway", 100),
		holder("Fidelity Index Fund", 50),
		holder("Fidelity Management & Research", 40),
	})
	want := []string{models.HolderPassive, models.HolderPassive, models.HolderActive, models.HolderPassive, models.HolderActive}
	types := make([]string, len(got))
	for i, h := range got {
		types[i] = h.HolderType
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("holder types (-want +got):\n%s", diff)
	}
}

func TestClassifyRanksAndTruncates(t *testing.T) {
	var in []models.InstitutionalHolder
	for i := 0; i < 15; i++ {
		in = append(in, holder(fmt.Sprintf("Holder %02d", i), float64(i*10)))
	}
	got := Classify(in)
	assert.Len(t, got, TopN)
	assert.Equal(t, "Holder 14", got[0].HolderName)
	assert.Equal(t, "Holder 05", got[TopN-1].HolderName)
}

func TestClassifyStableOnTies(t *testing.T) {
	got := Classify([]models.InstitutionalHolder{
		holder("First", 100), holder("Second", 100), holder("Third", 200),
	})
	assert.Equal(t, []string{"Third", "First", "Second"},
		[]string{got[0].HolderName, got[1].HolderName, got[2].HolderName})
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	change := -25.0
	in := []models.InstitutionalHolder{holder("Small", 1), holder("Large", 2)}
	in[0].ChangePct = &change
	Classify(in)
	assert.Equal(t, "Small", in[0].HolderName)
	assert.Equal(t, models.HolderInstitutional, in[0].HolderType)
	assert.Equal(t, -25.0, *in[0].ChangePct)
}

func TestClassifyEmpty(t *testing.T) {
	assert.Empty(t, Classify(nil))
}
