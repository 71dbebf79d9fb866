package dinner

import (
	"testing"

	"registration-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMenu = []models.DinnerMenuItem{
	{ID: 5, FormID: 1, Name: "Roast Dinner", NamePlural: "Roast Dinners", Price: 2500},
	{ID: 7, FormID: 1, Name: "Kids Meal", NamePlural: "Kids Meals", Price: 2000},
	{ID: 9, FormID: 1, Name: "Pavlova", NamePlural: "Pavlovas", Price: 0},
}

func TestCostCategoriesSchema(t *testing.T) {
	payload := []byte(`{
		"categories": {
			"10": [
				{"name": "Alice", "courses": {"main": 5}},
				{"name": "Bob", "courses": {"main": 5, "dessert": 0}}
			],
			"20": [
				{"name": "Carol", "courses": {"main": 7}}
			]
		}
	}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	cost, err := sel.Cost(testMenu)
	require.NoError(t, err)
	assert.Equal(t, int64(2500+2500+2000), cost)
}

func TestCostLegacyMealsSchema(t *testing.T) {
	payload := []byte(`{"meals": {"5": [{},{}], "7": [{}]}}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	cost, err := sel.Cost(testMenu)
	require.NoError(t, err)
	assert.Equal(t, int64(2500+2500+2000), cost)
}

func TestCostBothSchemasAdditive(t *testing.T) {
	payload := []byte(`{
		"categories": {"10": [{"courses": {"main": 5}}]},
		"meals": {"7": [{}]}
	}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)
	assert.True(t, sel.DualSchema())

	cost, err := sel.Cost(testMenu)
	require.NoError(t, err)
	assert.Equal(t, int64(2500+2000), cost)
}

func TestCostUnknownItem(t *testing.T) {
	payload := []byte(`{"categories": {"10": [{"courses": {"main": 42}}]}}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	_, err = sel.Cost(testMenu)
	var menuErr *models.InvalidMenuItemError
	require.ErrorAs(t, err, &menuErr)
	assert.Equal(t, int64(42), menuErr.ItemID)
}

func TestCostUnknownLegacyKey(t *testing.T) {
	payload := []byte(`{"meals": {"notanumber": [{}]}}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	_, err = sel.Cost(testMenu)
	var menuErr *models.InvalidMenuItemError
	require.ErrorAs(t, err, &menuErr)
}

func TestZeroCourseSelectionSkipped(t *testing.T) {
	payload := []byte(`{"categories": {"10": [{"courses": {"main": 5, "dessert": 0}}]}}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	cost, err := sel.Cost(testMenu)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), cost)
}

func TestEmptySelection(t *testing.T) {
	sel, err := ParseSelection(nil)
	require.NoError(t, err)
	assert.True(t, sel.Empty())

	cost, err := sel.Cost(testMenu)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cost)
}

func TestCourseCounts(t *testing.T) {
	payload := []byte(`{
		"categories": {
			"10": [
				{"courses": {"main": 5, "dessert": 9}},
				{"courses": {"main": 5}}
			]
		}
	}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	mains, desserts := sel.CourseCounts()
	assert.Equal(t, 2, mains)
	assert.Equal(t, 1, desserts)
}

func TestDescribeUsesPluralNames(t *testing.T) {
	payload := []byte(`{"meals": {"5": [{},{}], "7": [{}]}}`)

	sel, err := ParseSelection(payload)
	require.NoError(t, err)

	text, err := sel.Describe(testMenu)
	require.NoError(t, err)
	assert.Equal(t, "2 x Roast Dinners\n1 x Kids Meal\n", text)
}
