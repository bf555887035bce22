package rbd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDiagram(t *testing.T) {
	d, err := LoadDiagram("testdata/series_parallel.yaml")
	require.NoError(t, err)

	assert.Equal(t, "series-parallel", d.ID)
	assert.True(t, d.HasNode("n1"))
	assert.Len(t, d.Components, 3)
	require.Len(t, d.Connections, 3)
	for _, c := range d.Connections {
		assert.NotEmpty(t, c.ID)
	}

	paths, err := EnumeratePaths(d, Source, Sink)
	require.NoError(t, err)
	assert.Equal(t, []Path{{"A", "B"}, {"C"}}, paths)
}

func TestDecodeDiagram_JSON(t *testing.T) {
	doc := `{"id": "j", "nodes": ["source", "n1", "sink"], ` +
		`"components": [{"name": "A", "failure_probability": 0.1}], ` +
		`"connections": [{"id": "c1", "from": "source", "to": "n1", "component": "A"}]}`

	d, err := DecodeDiagram(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, d.Nodes, 3)
	assert.Equal(t, "c1", d.Connections[0].ID)
}

func TestDecodeDiagram_MarshalledDiagram(t *testing.T) {
	orig, err := LoadDiagram("testdata/bridge.yaml")
	require.NoError(t, err)

	doc, err := json.Marshal(orig)
	require.NoError(t, err)

	d, err := DecodeDiagram(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, orig, d)
}

func TestDecodeDiagram_RejectsUnknownNodeFields(t *testing.T) {
	_, err := DecodeDiagram(strings.NewReader("nodes: [{name: n1, label: x}]\n"))
	assert.Error(t, err)

	_, err = DecodeDiagram(strings.NewReader("nodes: [[n1]]\n"))
	assert.Error(t, err)
}

func TestDecodeDiagram_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown component",
			doc: `
components: [{name: A, failure_probability: 0.1}]
connections: [{from: source, to: sink, component: B}]`,
			want: ErrUnknownComponent,
		},
		{
			name: "bad probability",
			doc:  `components: [{name: A, failure_probability: 1.5}]`,
			want: ErrInvalidProbability,
		},
		{
			name: "unknown node",
			doc: `
components: [{name: A, failure_probability: 0.1}]
connections: [{from: source, to: n7, component: A}]`,
			want: ErrNodeNotFound,
		},
		{
			name: "blank node name",
			doc:  `nodes: [{name: ""}]`,
			want: ErrInvalidDiagram,
		},
		{
			name: "duplicate node",
			doc:  `nodes: [n1, n1]`,
			want: ErrDuplicateNode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDiagram(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeDiagram_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeDiagram(strings.NewReader("id: x\nedges: []\n"))
	assert.Error(t, err)
}

func TestDecodeDiagram_Empty(t *testing.T) {
	_, err := DecodeDiagram(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadDiagram_MissingFile(t *testing.T) {
	_, err := LoadDiagram("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}
