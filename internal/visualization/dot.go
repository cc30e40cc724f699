// Package visualization renders network topologies in various output formats.
package visualization

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/nvandessel/settle/internal/network"
	"gonum.org/v1/gonum/mat"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (valid: dot, json, html)", s)
	}
}

// edgeStyles maps mesh kinds to DOT attributes.
var edgeStyles = map[string]string{
	"forward":    `style=solid`,
	"transpose":  `style=dashed, constraint=false`,
	"inhibitory": `style=dotted, color="tomato", arrowhead=tee, constraint=false`,
}

// RenderDOT produces a Graphviz DOT representation of the topology. Input
// and target layers are colored; frozen layers are drawn dashed.
func RenderDOT(top network.Topology) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", top.Name)
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, n := range top.Nodes {
		color := "lightgray"
		switch {
		case n.Input:
			color = "steelblue"
		case n.Target:
			color = "mediumseagreen"
		}
		style := "filled"
		if n.Frozen {
			style = "filled,dashed"
		}
		fmt.Fprintf(&b, "  %q [label=\"%s\\n%d units\", fillcolor=%q, style=%q];\n", n.Name, n.Name, n.Size, color, style)
	}
	b.WriteString("\n")

	for _, e := range top.Edges {
		style := edgeStyles[e.Kind]
		if style == "" {
			style = "style=solid"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q, %s];\n", e.From, e.To, e.Name, style)
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready graph with nodes and edges arrays.
func RenderJSON(top network.Topology) map[string]any {
	nodes := top.Nodes
	if nodes == nil {
		nodes = []network.Node{}
	}
	edges := top.Edges
	if edges == nil {
		edges = []network.Edge{}
	}
	return map[string]any{
		"name":       top.Name,
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}
}

// htmlMatrix is one weight matrix prepared for the template.
type htmlMatrix struct {
	Title string
	Rows  [][]htmlCell
}

type htmlCell struct {
	Value string
	Shade int // 0-255, darker for larger weights
}

type htmlTemplateData struct {
	Name     string
	DOT      string
	Nodes    []network.Node
	Edges    []network.Edge
	Matrices []htmlMatrix
}

var pageTemplate = template.Must(template.New("network").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
body { font-family: Helvetica, sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
pre { background: #f6f6f6; padding: 1em; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
<h2>Layers</h2>
<table>
<tr><th>name</th><th>units</th><th>role</th></tr>
{{range .Nodes}}<tr><td>{{.Name}}</td><td>{{.Size}}</td><td>{{if .Input}}input{{else if .Target}}target{{else}}hidden{{end}}{{if .Frozen}} (frozen){{end}}</td></tr>
{{end}}</table>
<h2>Meshes</h2>
<table>
<tr><th>name</th><th>kind</th><th>from</th><th>to</th><th>size</th><th>trainable</th></tr>
{{range .Edges}}<tr><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.From}}</td><td>{{.To}}</td><td>{{.Size}}</td><td>{{.Trainable}}</td></tr>
{{end}}</table>
{{if .Matrices}}<h2>Weights</h2>
{{range .Matrices}}<h3>{{.Title}}</h3>
<table>
{{range .Rows}}<tr>{{range .}}<td style="background: rgb({{.Shade}},{{.Shade}},255)">{{.Value}}</td>{{end}}</tr>
{{end}}</table>
{{end}}{{end}}<h2>DOT</h2>
<pre>{{.DOT}}</pre>
</body>
</html>
`))

// RenderHTML produces a self-contained HTML page with the layer and mesh
// tables, optional weight heat maps and the DOT source. weights are titled
// by the network's forward meshes in order.
func RenderHTML(top network.Topology, weights []*mat.Dense) ([]byte, error) {
	data := htmlTemplateData{
		Name:  top.Name,
		DOT:   RenderDOT(top),
		Nodes: top.Nodes,
		Edges: top.Edges,
	}

	var forward []string
	for _, e := range top.Edges {
		if e.Kind == "forward" {
			forward = append(forward, fmt.Sprintf("%s (%s → %s)", e.Name, e.From, e.To))
		}
	}
	for i, w := range weights {
		title := fmt.Sprintf("weights %d", i)
		if i < len(forward) {
			title = forward[i]
		}
		data.Matrices = append(data.Matrices, htmlMatrix{Title: title, Rows: cells(w)})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}

func cells(w *mat.Dense) [][]htmlCell {
	r, c := w.Dims()
	rows := make([][]htmlCell, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]htmlCell, c)
		for j := 0; j < c; j++ {
			v := w.At(i, j)
			shade := 255 - int(255*min(max(v, 0), 1))
			rows[i][j] = htmlCell{Value: fmt.Sprintf("%.3f", v), Shade: shade}
		}
	}
	return rows
}
