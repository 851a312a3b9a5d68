package powerbi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope wraps a dsr JSON fragment in the full response envelope.
func envelope(dsr string) []byte {
	return []byte(fmt.Sprintf(`{"results":[{"result":{"data":{"dsr":%s}}}]}`, dsr))
}

func TestDecodeRows_PlainValues(t *testing.T) {
	body := envelope(`{"DS":[{"PH":[{"DM0":[
		{"S":[{"N":"G0","T":1},{"N":"G1","T":4}],"C":["Gymnázium",120]}
	]}]}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Gymnázium", "120"}, rows[0])
}

func TestDecodeRows_DictionaryLookup(t *testing.T) {
	body := envelope(`{"DS":[{
		"PH":[{"DM0":[
			{"S":[{"N":"G0","T":1,"DN":"D0"},{"N":"G1","T":4}],"C":[1,60]}
		]}],
		"ValueDicts":{"D0":["Lyceum","Gymnázium"]}
	}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gymnázium", rows[0][0])
}

func TestDecodeRows_DictionaryIndexOutOfRange(t *testing.T) {
	body := envelope(`{"DS":[{
		"PH":[{"DM0":[
			{"S":[{"N":"G0","T":1,"DN":"D0"}],"C":[5]}
		]}],
		"ValueDicts":{"D0":["only"]}
	}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0][0], "out-of-range dictionary index is missing, not an error")
}

func TestDecodeRows_NullBitmask(t *testing.T) {
	// Ø bit 1 marks the second column null; C carries only the first.
	body := envelope(`{"DS":[{"PH":[{"DM0":[
		{"S":[{"N":"G0","T":1},{"N":"G1","T":4}],"C":["x"],"Ø":2}
	]}]}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"x", ""}, rows[0])
}

func TestDecodeRows_RepeatBitmask(t *testing.T) {
	// The second row repeats column 0 from the first via the R bitmask.
	body := envelope(`{"DS":[{"PH":[{"DM0":[
		{"S":[{"N":"G0","T":1},{"N":"G1","T":4}],"C":["Gymnázium",100]},
		{"C":[200],"R":1}
	]}]}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Gymnázium", "100"}, rows[0])
	assert.Equal(t, []string{"Gymnázium", "200"}, rows[1])
}

func TestDecodeRows_ShortCArray(t *testing.T) {
	body := envelope(`{"DS":[{"PH":[{"DM0":[
		{"S":[{"N":"G0","T":1},{"N":"G1","T":4},{"N":"G2","T":4}],"C":["x"]}
	]}]}]}`)

	rows, err := DecodeRows(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"x", "", ""}, rows[0])
}

func TestDecodeRows_SemanticError(t *testing.T) {
	body := envelope(`{"DataShapes":[{"odata.error":{"message":{"value":"query rejected"}}}]}`)

	_, err := DecodeRows(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query rejected")
}

func TestDecodeRows_EmptyDataSet(t *testing.T) {
	rows, err := DecodeRows(envelope(`{"DS":[]}`))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = DecodeRows(envelope(`{"DS":[{"PH":[]}]}`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRows_NotJSON(t *testing.T) {
	_, err := DecodeRows([]byte("<html>not json</html>"))
	assert.Error(t, err)
}

func TestDecodeRows_NoResults(t *testing.T) {
	_, err := DecodeRows([]byte(`{"results":[]}`))
	assert.Error(t, err)
}
