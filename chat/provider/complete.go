package provider

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Complete opens a stream and drains it into a single string. Used for
// non-interactive generation such as continuation summaries.
func Complete(ctx context.Context, factory Factory, p Provider, req Request) (string, error) {
	stream, err := factory.Open(ctx, p, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		ev, err := stream.Recv()
		if err != nil {
			// io.EOF after a terminal event; anything else is a read failure.
			if sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", errors.WithMessage(err, "drain stream")
		}
		switch ev.Kind {
		case EventDelta:
			sb.WriteString(ev.Text)
		case EventDone:
			return sb.String(), nil
		case EventError:
			return "", ev.Err
		}
	}
}
