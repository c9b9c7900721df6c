package ports

import "context"

// Completer is the text-generation collaborator. Implementations must bound
// every call with a timeout; a slow model must not pin a request worker.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
