package strand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFLSGetSet(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	key := NewFLSKey()
	other := NewFLSKey()
	var got, missing any
	f := MakeWorker(Post, func() {
		self := Active()
		self.SetFLS(key, "value", nil, false)
		got = self.GetFLS(key)
		missing = self.GetFLS(other)
	})
	require.NoError(t, f.Join())
	require.Equal(t, "value", got)
	require.Nil(t, missing)
}

func TestFLSCleanupOnDestroy(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	key := NewFLSKey()
	var cleaned []any
	f := MakeWorker(Post, func() {
		Active().SetFLS(key, "last", func(v any) {
			cleaned = append(cleaned, v)
		}, false)
	})
	require.NoError(t, f.Join())
	// the join released the last reference; the destroy step ran the
	// cleanup with the last stored value, exactly once
	require.Equal(t, []any{"last"}, cleaned)
}

func TestFLSCleanupExisting(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	key := NewFLSKey()
	var cleaned []any
	var afterPlainSet, afterReplace int
	cleanup := func(v any) { cleaned = append(cleaned, v) }
	f := MakeWorker(Post, func() {
		self := Active()
		self.SetFLS(key, "first", cleanup, false)
		// keep the old value alive, no cleanup
		self.SetFLS(key, "second", cleanup, false)
		afterPlainSet = len(cleaned)
		// replace and clean the existing value
		self.SetFLS(key, "third", cleanup, true)
		afterReplace = len(cleaned)
	})
	require.NoError(t, f.Join())
	require.Equal(t, 0, afterPlainSet, "overwrite without cleanupExisting must not clean")
	require.Equal(t, 1, afterReplace, "overwrite with cleanupExisting cleans the old value")
	require.Equal(t, []any{"second", "third"}, cleaned)
}

func TestFLSPerContext(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	key := NewFLSKey()
	var a, b any
	fa := MakeWorker(Post, func() {
		Active().SetFLS(key, "a", nil, false)
		Yield()
		a = Active().GetFLS(key)
	})
	fb := MakeWorker(Post, func() {
		Active().SetFLS(key, "b", nil, false)
		Yield()
		b = Active().GetFLS(key)
	})
	require.NoError(t, fa.Join())
	require.NoError(t, fb.Join())
	require.Equal(t, "a", a)
	require.Equal(t, "b", b)
}

func TestFLSMainContext(t *testing.T) {
	s := NewScheduler()

	key := NewFLSKey()
	cleanups := 0
	Active().SetFLS(key, 7, func(any) { cleanups++ }, false)
	require.Equal(t, 7, Active().GetFLS(key))
	s.Shutdown()
	require.Equal(t, 1, cleanups, "main context cleanup runs at scheduler teardown")
}
