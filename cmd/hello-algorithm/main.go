// Command hello-algorithm is a minimal algorithm served by the adk runtime.
// It greets text input, echoes binary input and counts keys of JSON objects.
// When a model manifest with a "greeting" file is present, the greeting is
// read from it at load time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	"algoadk/go-runtime/pkg/adk"
	"algoadk/go-runtime/pkg/manifest"
)

type state struct {
	greeting string
}

func load(ctx context.Context, models adk.Models) (any, error) {
	st := &state{greeting: "hello"}
	path, err := models.GetModel(ctx, "greeting")
	if err != nil {
		var notFound *manifest.NotFoundError
		if errors.As(err, &notFound) {
			// the greeting file is optional for this algorithm
			return st, nil
		}
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if g := strings.TrimSpace(string(raw)); g != "" {
		st.greeting = g
	}
	return st, nil
}

func apply(_ context.Context, payload any, s any) (any, error) {
	st, ok := s.(*state)
	if !ok {
		return nil, adk.NewError(adk.ErrorTypeAlgorithm, "algorithm state was not loaded")
	}
	switch p := payload.(type) {
	case string:
		return st.greeting + " " + p, nil
	case []byte:
		return p, nil
	case map[string]any:
		return map[string]any{"keys": len(p)}, nil
	default:
		return nil, adk.NewError("UnsupportedInputError", fmt.Sprintf("unsupported input %T", payload))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := adk.New(adk.StatefulApplyFunc(apply), adk.WithLoad(adk.ManifestLoadFunc(load)))
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	var payload any
	if len(os.Args) > 1 {
		payload = strings.Join(os.Args[1:], " ")
	}
	if err := rt.Init(ctx, payload, nil); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
