// Package invoke implements the invoke command.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/auth"
	"github.com/broady/shapeclient/document"
	"github.com/broady/shapeclient/interceptors"
	"github.com/broady/shapeclient/shapegen/model"
)

type Cmd struct {
	Model     string `arg:"" help:"Model file (JSON or YAML)."`
	Operation string `arg:"" help:"Operation name."`
	Input     string `arg:"" optional:"" help:"Input as a JSON object, or - to read it from stdin." default:"{}"`
	Service   string `help:"Service shape ID (required if the model has several)." short:"s"`
	Endpoint  string `help:"Endpoint URL. Overrides SHAPECLIENT_ENDPOINT." short:"e"`
}

func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	m, err := model.LoadFile(c.Model)
	if err != nil {
		return err
	}
	env, err := shapeclient.LoadEnvConfig()
	if err != nil {
		return err
	}
	if c.Endpoint != "" {
		env.Endpoint = c.Endpoint
	}
	plugins, err := env.Plugins()
	if err != nil {
		return err
	}
	plugins = append(plugins,
		auth.EnvPlugin(env),
		shapeclient.WithLogger(logger),
		shapeclient.WithInterceptor(
			interceptors.NewLogging(logger),
			interceptors.InvocationID{},
			interceptors.UserAgent{Extra: []string{"shapegen-cli"}},
		),
	)
	client, err := shapeclient.New(m, model.ShapeID(c.Service), plugins...)
	if err != nil {
		return err
	}

	input := []byte(c.Input)
	if c.Input == "-" {
		if input, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}
	}
	return Call(ctx, os.Stdout, client, c.Operation, input)
}

// Call invokes operation with a JSON input document and writes the output
// to w as indented JSON. A streaming payload is copied to w after the JSON.
func Call(ctx context.Context, w io.Writer, client *shapeclient.Client, operation string, input []byte) error {
	op, ok := client.Service().Operation(operation)
	if !ok {
		return fmt.Errorf("service %s has no operation %q", client.Service().ID, operation)
	}
	codec := client.Protocol().Documents(client.Config().Model)

	if len(bytes.TrimSpace(input)) == 0 {
		input = []byte("{}")
	}
	doc, err := document.Decode(input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	in, err := codec.Deserialize(op.Input.ID, doc)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	inMap, _ := in.(map[string]any)

	out, err := client.Invoke(ctx, operation, inMap)
	if err != nil {
		return err
	}

	var streams []io.Reader
	for name, v := range out {
		if r, ok := v.(io.Reader); ok {
			streams = append(streams, r)
			delete(out, name)
		}
	}
	outDoc, err := codec.Serialize(op.Output.ID, out)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	data, err := document.Encode(outDoc)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteString("\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	for _, r := range streams {
		_, err := io.Copy(w, r)
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
