// Package testmodel provides the Widgets service model shared by tests.
package testmodel

import (
	_ "embed"

	"github.com/broady/shapeclient/shapegen/model"
)

//go:embed widgets.json
var widgetsJSON []byte

// Service is the Widgets service shape ID.
const Service model.ShapeID = "example.widgets#WidgetService"

// JSON returns the raw Widgets model document.
func JSON() []byte {
	return widgetsJSON
}

// Widgets loads a fresh copy of the Widgets model.
func Widgets() *model.Model {
	return model.MustLoad(widgetsJSON)
}

// ID returns the absolute shape ID for a Widgets shape name.
func ID(name string) model.ShapeID {
	return model.ShapeID("example.widgets#" + name)
}

// Operation resolves an operation of the Widgets service.
func Operation(m *model.Model, name string) *model.Operation {
	svc, err := m.Service(Service)
	if err != nil {
		panic(err)
	}
	op, ok := svc.Operation(name)
	if !ok {
		panic("unknown operation " + name)
	}
	return op
}
