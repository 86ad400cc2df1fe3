package adk

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// emitter delivers one encoded response line.
type emitter func(payload any) error

func serializedLine(payload any) (string, error) {
	line, ok := payload.(string)
	if !ok {
		return "", errors.Wrapf(ErrUnserializedPayload, "got %T", payload)
	}
	return line, nil
}

func localEmitter(w io.Writer, sink func(string)) emitter {
	if sink == nil {
		sink = func(line string) {
			_, _ = fmt.Fprintln(w, line)
		}
	}
	return func(payload any) error {
		line, err := serializedLine(payload)
		if err != nil {
			return err
		}
		sink(line)
		return nil
	}
}

// pipeEmitter opens the pipe for every response, like a FIFO writer that
// lets the reader see a complete line per open.
func pipeEmitter(path string) emitter {
	return func(payload any) error {
		line, err := serializedLine(payload)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return errors.Wrapf(err, "open pipe %s", path)
		}
		if _, err := io.WriteString(f, line+"\n"); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "write pipe %s", path)
		}
		return f.Close()
	}
}
