// Package obsplot renders declarative plot specifications into SVG element
// trees and keeps a rendered plot live as its specification changes.
//
// # Overview
//
// A specification is JSON. Plain values stand for themselves; tagged objects
// describe a call into one of two namespaces ("Plot" for marks and the plot
// composer, "d3" for data helpers) or carry a table in the Arrow IPC format:
//
//	{"ipyobsplot-type": "function", "module": "Plot", "method": "dot",
//	 "args": [{"ipyobsplot-type": "DataFrame", "value": "<base64>"}, {"x": "a"}]}
//
// The Interpreter walks a decoded specification and returns the realized
// value. The Builder wraps that value in a container element, calling
// Plot.plot when the result is not already an element and rendering any
// failure as an inline error. The Controller keeps one such container mounted
// and replaces it on every change of the observed property.
//
// # Quick Start
//
//	w, err := obsplot.NewWidget(obsplot.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	w.SetSpecNode(spec.Plot("plot", spec.Object(
//		"marks", spec.Array(spec.Plot("lineY", spec.Array(1, 3, 2))),
//	)))
//	fmt.Println(w.HTML())
//
//	w.Start() // dashboard at http://localhost:9090
//	defer w.Stop()
//
// # Architecture
//
//   - spec: JSON decoding and Go builders for specifications
//   - table: Arrow IPC decoding into in-memory tables
//   - plot, d3: the two namespaces
//   - model: the observable property store
//   - dashboard: HTTP and websocket delivery of renders
//   - metrics: request, render and runtime statistics
package obsplot
