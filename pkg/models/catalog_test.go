package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionListAcceptsListShape(t *testing.T) {
	var got OptionList
	err := json.Unmarshal([]byte(`[{"id":101,"value":"Red"},{"id":102,"value":"L"}]`), &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, VariantOption{ID: 101, Value: "Red"}, got[0])
	assert.Equal(t, VariantOption{ID: 102, Value: "L"}, got[1])
}

func TestOptionListNormalizesMapShape(t *testing.T) {
	var got OptionList
	err := json.Unmarshal([]byte(`{"color":"Red","size":"L","count":2,"oversize":true}`), &got)
	require.NoError(t, err)
	require.Len(t, got, 4)
	// ids are sequential 1..N in source key order, values stringified.
	assert.Equal(t, VariantOption{ID: 1, Value: "Red"}, got[0])
	assert.Equal(t, VariantOption{ID: 2, Value: "L"}, got[1])
	assert.Equal(t, VariantOption{ID: 3, Value: "2"}, got[2])
	assert.Equal(t, VariantOption{ID: 4, Value: "true"}, got[3])
}

func TestOptionListSameCardinalityBothShapes(t *testing.T) {
	var fromList, fromMap OptionList
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"value":"a"},{"id":2,"value":"b"},{"id":3,"value":"c"}]`), &fromList))
	require.NoError(t, json.Unmarshal([]byte(`{"x":"a","y":"b","z":"c"}`), &fromMap))
	assert.Len(t, fromList, 3)
	assert.Len(t, fromMap, 3)
	for i, opt := range fromMap {
		assert.Equal(t, i+1, opt.ID)
	}
}

func TestOptionListNullAndInvalid(t *testing.T) {
	var got OptionList
	require.NoError(t, json.Unmarshal([]byte(`null`), &got))
	assert.Nil(t, got)

	err := json.Unmarshal([]byte(`"red"`), &got)
	assert.Error(t, err)
}

func TestLocationStringShape(t *testing.T) {
	var p PrintProvider
	err := json.Unmarshal([]byte(`{"id":50,"title":"Printful","location":"United States"}`), &p)
	require.NoError(t, err)
	assert.Equal(t, "United States", p.Location.Text)
	assert.Empty(t, p.Location.Country)
}

func TestLocationObjectShape(t *testing.T) {
	var p PrintProvider
	err := json.Unmarshal([]byte(`{"id":50,"title":"Printful","location":{"address1":"11201 Ed Brown Rd","city":"Charlotte","country":"US","region":"NC","zip":"28273"}}`), &p)
	require.NoError(t, err)
	assert.Equal(t, "US", p.Location.Country)
	assert.Equal(t, "11201 Ed Brown Rd, Charlotte, NC, 28273, US", p.Location.Text)
}

func TestLocationMarshalsAsText(t *testing.T) {
	b, err := json.Marshal(Location{Text: "Riga, Latvia"})
	require.NoError(t, err)
	assert.Equal(t, `"Riga, Latvia"`, string(b))
}

func TestShopIDAcceptsNumberAndString(t *testing.T) {
	var numeric, str Shop
	require.NoError(t, json.Unmarshal([]byte(`{"id":8361217,"title":"My Store","sales_channel":"etsy"}`), &numeric))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"8361217","title":"My Store","sales_channel":"etsy"}`), &str))
	assert.Equal(t, "8361217", numeric.ID)
	assert.Equal(t, str, numeric)
}

func TestCatalogVariantDecodesBothOptionShapes(t *testing.T) {
	var listShape, mapShape CatalogVariant
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12126,
		"title": "Navy / S",
		"options": [{"id": 521, "value": "Navy"}, {"id": 14, "value": "S"}],
		"placeholders": [{"position": "front", "width": 4000, "height": 5151}]
	}`), &listShape))
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12126,
		"title": "Navy / S",
		"options": {"color": "Navy", "size": "S"}
	}`), &mapShape))

	assert.Len(t, listShape.Options, 2)
	assert.Len(t, mapShape.Options, 2)
	assert.Equal(t, "Navy", mapShape.Options[0].Value)
	assert.Equal(t, "front", listShape.Placeholders[0].Position)
}
