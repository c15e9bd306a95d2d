package dataset

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContents(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n"))

	b, err := DecodeContents("data:text/csv;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))

	b, err = DecodeContents(payload)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))

	_, err = DecodeContents("not base64!!!")
	assert.Error(t, err)
}

func TestFromCSV(t *testing.T) {
	in := "Amount Awarded,Recipient Org:0:Name\n100,Acme\n,Beta\n"

	tbl, err := FromCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Amount Awarded", "Recipient Org:0:Name"}, tbl.Columns())
	require.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, "100", tbl.Value(0, "Amount Awarded"))
	assert.Nil(t, tbl.Value(1, "Amount Awarded"))
	assert.Equal(t, "Beta", tbl.Value(1, "Recipient Org:0:Name"))
}

func TestFromCSVRaggedRows(t *testing.T) {
	in := "a,b,c\n1,2\n"

	tbl, err := FromCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.NumRows())
	assert.Equal(t, "2", tbl.Value(0, "b"))
	assert.Nil(t, tbl.Value(0, "c"))
}

func TestFromJSONEnvelope(t *testing.T) {
	in := `{"grants": [
		{
			"amountAwarded": 750,
			"awardDate": "2019-06-01",
			"recipientOrganization": [{"id": "GB-CHC-123456", "name": "Acme Trust"}],
			"fundingOrganization": [{"name": "The Fund"}]
		}
	]}`

	tbl, err := FromJSON([]byte(in))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.NumRows())

	assert.Equal(t, 750.0, tbl.Value(0, "Amount Awarded"))
	assert.Equal(t, "2019-06-01", tbl.Value(0, "Award Date"))
	assert.Equal(t, "GB-CHC-123456", tbl.Value(0, "Recipient Org:0:Identifier"))
	assert.Equal(t, "Acme Trust", tbl.Value(0, "Recipient Org:0:Name"))
	assert.Equal(t, "The Fund", tbl.Value(0, "Funding Org:0:Name"))
}

func TestFromJSONBareArray(t *testing.T) {
	in := `[{"amountAwarded": 100}, {"amountAwarded": 200}]`

	tbl, err := FromJSON([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, 200.0, tbl.Value(1, "Amount Awarded"))
}

func TestFromJSONRejectsOtherShapes(t *testing.T) {
	_, err := FromJSON([]byte(`{"noGrantsHere": true}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`"just a string"`))
	assert.Error(t, err)
}
