package shapeclient

import (
	"context"

	"github.com/broady/shapeclient/document"
)

// Invoke calls operation with a generated input struct and decodes the
// output into a new O. A nil in sends an empty input.
//
// Generated client methods are one-line wrappers around Invoke:
//
//	func (c *Client) GetWidget(ctx context.Context, in *GetWidgetInput, opts ...shapeclient.Plugin) (*GetWidgetOutput, error) {
//		return shapeclient.Invoke[GetWidgetInput, GetWidgetOutput](ctx, c.c, "GetWidget", in, opts...)
//	}
func Invoke[I, O any](ctx context.Context, c *Client, operation string, in *I, plugins ...Plugin) (*O, error) {
	input := map[string]any{}
	if in != nil {
		v, ok := document.FromGo(in).(map[string]any)
		if !ok {
			return nil, &Error{
				Code:      CodeInvalidArgument,
				Operation: operation,
				Message:   "input must be a struct",
			}
		}
		input = v
	}
	output, err := c.Invoke(ctx, operation, input, plugins...)
	if err != nil {
		return nil, err
	}
	out := new(O)
	if err := document.ToGo(output, out); err != nil {
		return nil, &Error{
			Code:      CodeDeserialization,
			Operation: operation,
			Message:   err.Error(),
			Err:       err,
		}
	}
	return out, nil
}
