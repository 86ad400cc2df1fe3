package adk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"algoadk/go-runtime/internal/platform/metrics"
	"algoadk/go-runtime/pkg/models"
)

func helloApply(payload any) (any, error) {
	return "hello " + fmt.Sprint(payload), nil
}

func binaryEcho(payload any) (any, error) {
	b, ok := payload.([]byte)
	if !ok {
		return nil, errors.Newf("expected bytes, got %T", payload)
	}
	return append([]byte("hello "), b...), nil
}

func TestLocalTextScenario(t *testing.T) {
	rt, stdout := newLocalRuntime(t, helloApply, "")

	var got []string
	require.NoError(t, rt.Init(context.Background(), "Algorithmia", func(line string) { got = append(got, line) }))

	require.Len(t, got, 1)
	assert.JSONEq(t, `{"result":"hello Algorithmia","metadata":{"content_type":"text"}}`, got[0])
	assert.Equal(t, models.LoadingComplete+"\n", stdout.String())
}

func TestLocalBinaryScenario(t *testing.T) {
	rt, _ := newLocalRuntime(t, binaryEcho, "")

	var got []string
	require.NoError(t, rt.Init(context.Background(), []byte("payload"), func(line string) { got = append(got, line) }))

	require.Len(t, got, 1)
	assert.JSONEq(t, `{"result":"aGVsbG8gcGF5bG9hZA==","metadata":{"content_type":"binary"}}`, got[0])
}

func TestLocalDefaultSinkWritesStdout(t *testing.T) {
	rt, stdout := newLocalRuntime(t, func(p any) (any, error) {
		return map[string]any{"echo": p}, nil
	}, "")

	require.NoError(t, rt.Init(context.Background(), "x", nil))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, models.LoadingComplete, lines[0])
	assert.JSONEq(t, `{"result":{"echo":"x"},"metadata":{"content_type":"json"}}`, lines[1])
}

func TestLocalWithoutPayloadReadsStdin(t *testing.T) {
	input := requestLine(t, "text", "one") + "\n" + requestLine(t, "text", "two") + "\n"
	rt, _ := newLocalRuntime(t, helloApply, input)

	var got []string
	require.NoError(t, rt.Init(context.Background(), nil, func(line string) { got = append(got, line) }))
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"result":"hello one","metadata":{"content_type":"text"}}`, got[0])
	assert.JSONEq(t, `{"result":"hello two","metadata":{"content_type":"text"}}`, got[1])
}

func TestServerLoadingFailureIsSticky(t *testing.T) {
	applyCalls := 0
	hookCalls := 0
	apply := func(p, s any) (any, error) {
		applyCalls++
		return p, nil
	}
	load := func() (any, error) { return nil, errors.New("boom") }
	input := strings.Join([]string{
		requestLine(t, "text", "a"),
		requestLine(t, "json", map[string]any{"k": 1}),
		requestLine(t, "binary", "cGF5bG9hZA=="),
	}, "\n") + "\n"

	rt, pipe, stdout := newServerRuntime(t, apply, input,
		WithLoad(load),
		WithExceptionHook(func(context.Context, error) error {
			hookCalls++
			return nil
		}),
	)
	require.NoError(t, rt.Init(context.Background(), nil, nil))

	assert.Equal(t, models.PipeInitComplete+"\n", stdout.String())
	lines := readPipe(t, pipe)
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, lines[0], line, "loading error must be re-sent verbatim")
	}
	body := decodeError(t, lines[0])
	assert.Equal(t, "boom", body.Message)
	assert.Equal(t, ErrorTypeLoading, body.ErrorType)
	assert.NotEmpty(t, body.Stacktrace)
	assert.Zero(t, applyCalls)
	assert.Equal(t, 1, hookCalls)
}

func TestLocalLoadingFailureReturnsEnvelope(t *testing.T) {
	applyCalls := 0
	rt, stdout := newLocalRuntime(t, func(p any) (any, error) {
		applyCalls++
		return p, nil
	}, "", WithLoad(func() (any, error) { panic("load exploded") }))

	var got []string
	require.NoError(t, rt.Init(context.Background(), "x", func(line string) { got = append(got, line) }))
	require.Len(t, got, 1)
	body := decodeError(t, got[0])
	assert.Equal(t, "load exploded", body.Message)
	assert.Equal(t, ErrorTypeLoading, body.ErrorType)
	assert.Contains(t, body.Stacktrace, "goroutine")
	assert.Zero(t, applyCalls)
	assert.Equal(t, models.LoadingComplete+"\n", stdout.String())
}

func TestServerIsolatesRequestFailures(t *testing.T) {
	apply := func(p any) (any, error) {
		switch v := p.(type) {
		case string:
			if v == "panic" {
				panic("kaboom")
			}
			if v == "typed" {
				return nil, NewError("InvalidInput", "typed failure")
			}
			if v == "plain" {
				return nil, fmt.Errorf("plain failure")
			}
			return "hello " + v, nil
		case []byte:
			return v, nil
		default:
			return v, nil
		}
	}
	input := strings.Join([]string{
		requestLine(t, "text", "Algorithmia"),
		requestLine(t, "xml", "<a/>"),
		"   ",
		requestLine(t, "text", "panic"),
		`{"content_type":"text"`,
		requestLine(t, "text", "typed"),
		requestLine(t, "text", "plain"),
		requestLine(t, "binary", base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 255})),
		requestLine(t, "json", map[string]any{"n": 2}),
	}, "\n")

	rec := metrics.New("")
	rt, pipe, _ := newServerRuntime(t, apply, input, WithMetrics(rec))
	require.NoError(t, rt.Init(context.Background(), nil, nil))

	lines := readPipe(t, pipe)
	require.Len(t, lines, 8)

	assert.JSONEq(t, `{"result":"hello Algorithmia","metadata":{"content_type":"text"}}`, lines[0])

	invalid := decodeError(t, lines[1])
	assert.Equal(t, "Invalid content_type: xml", invalid.Message)
	assert.Equal(t, ErrorTypeAlgorithm, invalid.ErrorType)

	panicked := decodeError(t, lines[2])
	assert.Equal(t, "kaboom", panicked.Message)
	assert.Equal(t, ErrorTypeAlgorithm, panicked.ErrorType)
	assert.Contains(t, panicked.Stacktrace, "goroutine")

	malformed := decodeError(t, lines[3])
	assert.Equal(t, ErrorTypeAlgorithm, malformed.ErrorType)

	typed := decodeError(t, lines[4])
	assert.Equal(t, "InvalidInput", typed.ErrorType)
	assert.Equal(t, "typed failure", typed.Message)

	plain := decodeError(t, lines[5])
	want := models.ErrorBody{Message: "plain failure", Stacktrace: "", ErrorType: ErrorTypeAlgorithm}
	if diff := cmp.Diff(want, plain); diff != "" {
		t.Fatalf("unexpected plain error body (-want +got):\n%s", diff)
	}

	assert.JSONEq(t, `{"result":"AAEC/w==","metadata":{"content_type":"binary"}}`, lines[6])
	assert.JSONEq(t, `{"result":{"n":2},"metadata":{"content_type":"json"}}`, lines[7])

	expected := `
# HELP adk_requests_total Apply requests by outcome and response content type.
# TYPE adk_requests_total counter
adk_requests_total{content_type="binary",outcome="success"} 1
adk_requests_total{content_type="json",outcome="success"} 1
adk_requests_total{content_type="none",outcome="error"} 5
adk_requests_total{content_type="text",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "adk_requests_total"))
}

func TestUnserializableResultIsAlgorithmError(t *testing.T) {
	rt, _ := newLocalRuntime(t, func(any) (any, error) {
		return map[string]any{"ch": make(chan int)}, nil
	}, "")

	var got []string
	require.NoError(t, rt.Init(context.Background(), "x", func(line string) { got = append(got, line) }))
	require.Len(t, got, 1)
	assert.Equal(t, ErrorTypeAlgorithm, decodeError(t, got[0]).ErrorType)
}

func TestStatePassedToStatefulApply(t *testing.T) {
	type model struct{ Greeting string }
	apply := func(p, s any) (any, error) {
		m, ok := s.(*model)
		if !ok {
			return nil, errors.Newf("unexpected state %T", s)
		}
		return m.Greeting + " " + fmt.Sprint(p), nil
	}
	load := func() (any, error) { return &model{Greeting: "hi"}, nil }
	rt, _ := newLocalRuntime(t, apply, "", WithLoad(load))

	var got []string
	require.NoError(t, rt.Init(context.Background(), "there", func(line string) { got = append(got, line) }))
	assert.JSONEq(t, `{"result":"hi there","metadata":{"content_type":"text"}}`, got[0])
}

func TestStatefulApplyWithoutLoadGetsNilState(t *testing.T) {
	rt, _ := newLocalRuntime(t, func(p, s any) (any, error) {
		return map[string]any{"state_nil": s == nil}, nil
	}, "")

	var got []string
	require.NoError(t, rt.Init(context.Background(), "x", func(line string) { got = append(got, line) }))
	assert.JSONEq(t, `{"result":{"state_nil":true},"metadata":{"content_type":"json"}}`, got[0])
}

func TestExceptionHookFailureNeverEscapes(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calls := 0
	hook := func(_ context.Context, err error) error {
		calls++
		if calls == 1 {
			return errors.New("reporter offline")
		}
		panic("reporter crashed")
	}
	input := requestLine(t, "text", "a") + "\n" + requestLine(t, "text", "b") + "\n"
	rt, pipe, _ := newServerRuntime(t, func(p any) (any, error) {
		return nil, errors.Newf("bad %v", p)
	}, input, WithExceptionHook(hook), WithLogger(zap.New(core)))

	require.NoError(t, rt.Init(context.Background(), nil, nil))
	lines := readPipe(t, pipe)
	require.Len(t, lines, 2)
	assert.Equal(t, "bad a", decodeError(t, lines[0]).Message)
	assert.Equal(t, "bad b", decodeError(t, lines[1]).Message)
	assert.Equal(t, 2, logs.FilterMessage("exception hook failed").Len())
}

func TestErrorLogsAreThrottled(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, requestLine(t, "text", "x"))
	}
	rt, pipe, _ := newServerRuntime(t, func(any) (any, error) {
		return nil, errors.New("always")
	}, strings.Join(lines, "\n"), WithLogger(zap.New(core)))

	require.NoError(t, rt.Init(context.Background(), nil, nil))
	assert.Len(t, readPipe(t, pipe), 20)
	assert.Less(t, logs.FilterMessage("operation failed").Len(), 20)
}

func TestLocalEmitterRejectsStructuredPayload(t *testing.T) {
	var buf bytes.Buffer
	emit := localEmitter(&buf, nil)
	err := emit(map[string]any{"result": 1})
	require.ErrorIs(t, err, ErrUnserializedPayload)
	assert.Empty(t, buf.String())

	require.NoError(t, emit(`{"result":1}`))
	assert.Equal(t, "{\"result\":1}\n", buf.String())
}

func TestServerPipeFailureEndsInit(t *testing.T) {
	rt, pipe, _ := newServerRuntime(t, helloApply, requestLine(t, "text", "a")+"\n")
	require.NoError(t, os.Remove(pipe))

	err := rt.Init(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open pipe")
}

func TestInitStopsOnCancelledContext(t *testing.T) {
	calls := 0
	rt, pipe, stdout := newServerRuntime(t, func(p any) (any, error) {
		calls++
		return p, nil
	}, requestLine(t, "text", "a")+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rt.Init(ctx, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.PipeInitComplete+"\n", stdout.String())
	assert.Empty(t, readPipe(t, pipe))
	assert.Zero(t, calls)
}

func TestResponsesAreSingleLines(t *testing.T) {
	rt, pipe, _ := newServerRuntime(t, func(any) (any, error) {
		return "multi\nline\ntext", nil
	}, requestLine(t, "text", "a"))

	require.NoError(t, rt.Init(context.Background(), nil, nil))
	lines := readPipe(t, pipe)
	require.Len(t, lines, 1)
	var resp models.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp))
	assert.Equal(t, "multi\nline\ntext", resp.Result)
}

func TestInitRunsLoadOnce(t *testing.T) {
	loads := 0
	load := func() (any, error) {
		loads++
		return "state", nil
	}
	rt, _ := newLocalRuntime(t, func(p, s any) (any, error) { return s, nil }, "", WithLoad(load))

	var got []string
	sink := func(line string) { got = append(got, line) }
	require.NoError(t, rt.Init(context.Background(), "x", sink))
	err := rt.Init(context.Background(), "x", sink)
	require.ErrorIs(t, err, ErrAlreadyStarted)

	assert.Equal(t, 1, loads)
	require.Len(t, got, 1)
}

func TestJSONEchoKeepsLargeIntegers(t *testing.T) {
	input := `{"content_type":"json","data":{"id":9007199254740993,"price":10.10}}` + "\n"
	rt, _ := newLocalRuntime(t, func(p any) (any, error) { return p, nil }, input)

	var got []string
	require.NoError(t, rt.Init(context.Background(), nil, func(line string) { got = append(got, line) }))

	require.Len(t, got, 1)
	assert.Equal(t, `{"result":{"id":9007199254740993,"price":10.10},"metadata":{"content_type":"json"}}`, got[0])
}
