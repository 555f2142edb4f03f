package summarize

import "context"

// Model is a bounded-context text completion capability.
type Model interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
