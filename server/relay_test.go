package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (l *nopLogger) FeatureEvent(feature, id, text string) {}
func (l *nopLogger) RawDataEvent(direction, data string)   {}
func (l *nopLogger) Debug(text string)                     {}
func (l *nopLogger) Warn(text string)                      {}
func (l *nopLogger) Error(text string, err error)          {}

// fakeTransport records frames and can be told to fail.
type fakeTransport struct {
	id     string
	frames [][]byte
	broken bool
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) WriteMessage(data []byte) error {
	if f.broken {
		return fmt.Errorf("write on closed socket")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func TestRelay(t *testing.T) {

	t.Run("forwards to every subscriber", func(t *testing.T) {
		relay := NewRelay(&nopLogger{})
		first := &fakeTransport{id: "viewer-1"}
		second := &fakeTransport{id: "viewer-2"}
		relay.Subscribe("cp001", first)
		relay.Subscribe("cp001", second)
		require.Equal(t, 2, relay.SubscriberCount("cp001"))

		relay.Forward("cp001", []byte(`[2,"1","Heartbeat",{}]`))

		require.Len(t, first.frames, 1)
		require.Len(t, second.frames, 1)
		assert.Equal(t, `[2,"1","Heartbeat",{}]`, string(first.frames[0]))
	})

	t.Run("no subscribers is a no-op", func(t *testing.T) {
		relay := NewRelay(&nopLogger{})
		relay.Forward("cp001", []byte(`[2,"1","Heartbeat",{}]`))
	})

	t.Run("subscribers are scoped per charge point", func(t *testing.T) {
		relay := NewRelay(&nopLogger{})
		viewer := &fakeTransport{id: "viewer-1"}
		relay.Subscribe("cp001", viewer)

		relay.Forward("cp002", []byte(`[2,"1","Heartbeat",{}]`))
		assert.Empty(t, viewer.frames)
	})

	t.Run("failed write drops the subscriber only", func(t *testing.T) {
		relay := NewRelay(&nopLogger{})
		dead := &fakeTransport{id: "viewer-1", broken: true}
		live := &fakeTransport{id: "viewer-2"}
		relay.Subscribe("cp001", dead)
		relay.Subscribe("cp001", live)

		relay.Forward("cp001", []byte(`[3,"1",{}]`))

		assert.Len(t, live.frames, 1)
		assert.Equal(t, 1, relay.SubscriberCount("cp001"))

		relay.Forward("cp001", []byte(`[3,"2",{}]`))
		assert.Len(t, live.frames, 2)
	})

	t.Run("unsubscribe removes the set when empty", func(t *testing.T) {
		relay := NewRelay(&nopLogger{})
		viewer := &fakeTransport{id: "viewer-1"}
		relay.Subscribe("cp001", viewer)
		relay.Unsubscribe("cp001", viewer)
		assert.Equal(t, 0, relay.SubscriberCount("cp001"))
		relay.Unsubscribe("cp001", viewer)
	})
}
