package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutAndGet(t *testing.T) {
	t.Parallel()

	a := NewMemory()
	uri, err := a.Put(context.Background(), "ons-cpi/2023/10/abc.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "memory://ons-cpi/2023/10/abc.html", uri)

	data, ok := a.Get("ons-cpi/2023/10/abc.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html/>"), data)
	require.Equal(t, 1, a.Len())
}

func TestMemoryPutRequiresKey(t *testing.T) {
	t.Parallel()

	a := NewMemory()
	_, err := a.Put(context.Background(), "", "text/html", nil)
	require.ErrorContains(t, err, "key is required")
}
