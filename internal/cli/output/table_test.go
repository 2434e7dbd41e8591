package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"id", "establishment", "price"})
	table.AddRecords([]domain.Record{
		{"id": "e-1", "establishment": "Kaffe O", "price": json.Number("3.10")},
		{"id": "e-2", "establishment": "Root & Branch"},
	})
	require.Equal(t, 2, table.Len())

	require.NoError(t, table.Render())

	out := buf.String()
	assert.Contains(t, out, "ESTABLISHMENT")
	assert.Contains(t, out, "Kaffe O")
	assert.Contains(t, out, "3.10")
	assert.Contains(t, out, "Root & Branch")
}
