// Package check implements the check command.
package check

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/broady/shapeclient/shapegen/model"
)

type Cmd struct {
	Model string `arg:"" help:"Model file (JSON or YAML)."`
}

func (c *Cmd) Run() error {
	m, err := model.LoadFile(c.Model)
	if err != nil {
		return err
	}
	return Report(os.Stdout, m)
}

// Report prints validation problems and a summary of each service. It
// returns an error when the model has problems.
func Report(w io.Writer, m *model.Model) error {
	errs := m.Validate()
	for _, err := range errs {
		fmt.Fprintf(w, "✗ %v\n", err)
	}

	ids := m.Services()
	if len(ids) == 0 {
		fmt.Fprintln(w, "✗ no service shapes")
		errs = append(errs, errors.New("no service shapes"))
	}
	for _, id := range ids {
		svc, err := m.Service(id)
		if err != nil {
			fmt.Fprintf(w, "✗ %v\n", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "✓ service %s: %d operations\n", svc.ID, len(svc.Operations))
		for _, op := range svc.Operations {
			fmt.Fprintf(w, "  %-7s %-30s %s\n", op.HTTP.Method, op.HTTP.URI, op.Name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d problems found", len(errs))
	}
	fmt.Fprintln(w, "✓ model is valid")
	return nil
}
