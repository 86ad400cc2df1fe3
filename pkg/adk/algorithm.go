package adk

import (
	"context"
)

type ApplyKind int

const (
	PayloadOnly ApplyKind = iota + 1
	PayloadAndState
)

func (k ApplyKind) String() string {
	switch k {
	case PayloadOnly:
		return "payload_only"
	case PayloadAndState:
		return "payload_and_state"
	default:
		return "unknown"
	}
}

type LoadKind int

const (
	NoLoad LoadKind = iota
	NoArgs
	WithManifest
)

func (k LoadKind) String() string {
	switch k {
	case NoLoad:
		return "no_load"
	case NoArgs:
		return "no_args"
	case WithManifest:
		return "with_manifest"
	default:
		return "unknown"
	}
}

// Models resolves manifest file names to local paths.
type Models interface {
	GetModel(ctx context.Context, name string) (string, error)
}

type (
	ApplyFunc         func(ctx context.Context, payload any) (any, error)
	StatefulApplyFunc func(ctx context.Context, payload, state any) (any, error)
	LoadFunc          func(ctx context.Context) (any, error)
	ManifestLoadFunc  func(ctx context.Context, m Models) (any, error)
)

// algorithm is the user code normalized to one calling convention. The
// kinds are fixed at construction.
type algorithm struct {
	applyKind ApplyKind
	apply     StatefulApplyFunc
	loadKind  LoadKind
	load      ManifestLoadFunc
}

func bindApply(fn any) (ApplyKind, StatefulApplyFunc, error) {
	switch f := fn.(type) {
	case nil:
		return 0, nil, configErrorf("apply function is required")
	case ApplyFunc:
		return payloadOnly(f)
	case func(context.Context, any) (any, error):
		return payloadOnly(f)
	case func(any) (any, error):
		if f == nil {
			return 0, nil, configErrorf("apply function is required")
		}
		return payloadOnly(func(_ context.Context, payload any) (any, error) { return f(payload) })
	case StatefulApplyFunc:
		return payloadAndState(f)
	case func(context.Context, any, any) (any, error):
		return payloadAndState(f)
	case func(any, any) (any, error):
		if f == nil {
			return 0, nil, configErrorf("apply function is required")
		}
		return payloadAndState(func(_ context.Context, payload, state any) (any, error) { return f(payload, state) })
	case func() (any, error), func(context.Context) (any, error):
		return 0, nil, configErrorf("apply function may have between 1 and 2 parameters, not 0")
	case func(any, any, any) (any, error), func(context.Context, any, any, any) (any, error):
		return 0, nil, configErrorf("apply function may have between 1 and 2 parameters, not 3")
	default:
		return 0, nil, configErrorf("unsupported apply function signature %T", fn)
	}
}

func payloadOnly(f ApplyFunc) (ApplyKind, StatefulApplyFunc, error) {
	if f == nil {
		return 0, nil, configErrorf("apply function is required")
	}
	return PayloadOnly, func(ctx context.Context, payload, _ any) (any, error) {
		return f(ctx, payload)
	}, nil
}

func payloadAndState(f StatefulApplyFunc) (ApplyKind, StatefulApplyFunc, error) {
	if f == nil {
		return 0, nil, configErrorf("apply function is required")
	}
	return PayloadAndState, f, nil
}

func bindLoad(fn any) (LoadKind, ManifestLoadFunc, error) {
	switch f := fn.(type) {
	case nil:
		return NoLoad, nil, nil
	case LoadFunc:
		return noArgs(f)
	case func(context.Context) (any, error):
		return noArgs(f)
	case func() (any, error):
		if f == nil {
			return NoLoad, nil, nil
		}
		return noArgs(func(context.Context) (any, error) { return f() })
	case ManifestLoadFunc:
		return withManifest(f)
	case func(context.Context, Models) (any, error):
		return withManifest(f)
	case func(Models) (any, error):
		if f == nil {
			return NoLoad, nil, nil
		}
		return withManifest(func(_ context.Context, m Models) (any, error) { return f(m) })
	case func(any, any) (any, error), func(Models, any) (any, error), func(context.Context, Models, any) (any, error):
		return 0, nil, configErrorf("load function may have at most 1 parameter, not 2")
	default:
		return 0, nil, configErrorf("unsupported load function signature %T", fn)
	}
}

func noArgs(f LoadFunc) (LoadKind, ManifestLoadFunc, error) {
	if f == nil {
		return NoLoad, nil, nil
	}
	return NoArgs, func(ctx context.Context, _ Models) (any, error) {
		return f(ctx)
	}, nil
}

func withManifest(f ManifestLoadFunc) (LoadKind, ManifestLoadFunc, error) {
	if f == nil {
		return NoLoad, nil, nil
	}
	return WithManifest, f, nil
}
