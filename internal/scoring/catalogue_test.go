package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landrace-threat/internal/errs"
)

func TestDefaultCatalogue(t *testing.T) {
	c := DefaultCatalogue()

	require.Len(t, c.Groups, 4)
	assert.Len(t, c.Keys(), MaxCriteria)

	cr, ok := c.Lookup("B3")
	require.True(t, ok)
	assert.Equal(t, "B", cr.Group)
	assert.False(t, cr.Required)

	assert.Equal(t, []string{"A1", "B1", "C1", "D1"}, c.MissingRequired(Values{}))
}

func TestMissingRequiredTreatsNAAsAnswered(t *testing.T) {
	c := DefaultCatalogue()
	missing := c.MissingRequired(Values{"A1": NA, "B1": 2, "C1": 5})
	assert.Equal(t, []string{"D1"}, missing)
}

func TestValidate(t *testing.T) {
	c := DefaultCatalogue()

	assert.NoError(t, c.Validate(Values{"A1": 1, "D6": 5, "C2": NA}))

	err := c.Validate(Values{"Z9": 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "unknown subcriterion Z9")

	err = c.Validate(Values{"A1": 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A1")
}

func TestLoadCatalogueRejectsDuplicates(t *testing.T) {
	doc := []byte(`
groups:
  - key: A
    name: Range
    criteria:
      - key: A1
        label: one
      - key: A1
        label: again
`)
	_, err := LoadCatalogue(doc)
	assert.ErrorContains(t, err, "duplicate criterion key A1")
}

func TestLoadCatalogueRejectsEmpty(t *testing.T) {
	_, err := LoadCatalogue([]byte("groups: []"))
	assert.Error(t, err)
}
