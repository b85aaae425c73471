package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartDescriptionsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ChartDescriptions
	}{
		{
			name: "object",
			in:   `{"page1_chart1.png": "Revenue by quarter"}`,
			want: ChartDescriptions{"page1_chart1.png": "Revenue by quarter"},
		},
		{
			name: "encoded string",
			in:   `"{\"page2_chart1.png\": \"Headcount\"}"`,
			want: ChartDescriptions{"page2_chart1.png": "Headcount"},
		},
		{
			name: "invalid encoded string",
			in:   `"not json at all"`,
			want: ChartDescriptions{},
		},
		{
			name: "unexpected shape",
			in:   `[1, 2, 3]`,
			want: ChartDescriptions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChartDescriptions
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentDescriptionsFallsBackToRawColumn(t *testing.T) {
	doc := Document{
		ChartDescriptionsJSON: ChartDescriptions{"page1_chart1.png": "from raw column"},
	}
	assert.Equal(t, "from raw column", doc.Descriptions()["page1_chart1.png"])

	doc.ChartDescriptions = ChartDescriptions{"page1_chart1.png": "parsed"}
	assert.Equal(t, "parsed", doc.Descriptions()["page1_chart1.png"])
}

func TestDocumentUnmarshalWithEncodedDescriptions(t *testing.T) {
	raw := `{
		"original_filename": "report.pdf",
		"chart_dir": "/app/data/charts/7",
		"chart_descriptions": "{\"page3_chart1.png\": \"Quarterly revenue\"}",
		"vision_model_used": "Moondream2"
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "report.pdf", doc.OriginalFilename)
	assert.Equal(t, "Quarterly revenue", doc.Descriptions()["page3_chart1.png"])
}

func TestVisionModelCatalog(t *testing.T) {
	assert.True(t, IsKnownVisionModel(DefaultVisionModel()))
	assert.False(t, IsKnownVisionModel("GPT-9000"))
	for _, m := range VisionModels {
		assert.NotEmpty(t, VisionModelDescriptions[m], "model %s has no description", m)
	}
}
