package shutdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShutdownRunsInReverseOrderOnce(t *testing.T) {
	m := NewManager()
	var order []string
	m.OnShutdown("db", func(context.Context) error { order = append(order, "db"); return nil })
	m.OnShutdown("http", func(context.Context) error { order = append(order, "http"); return errors.New("busy") })
	m.OnShutdown("nil", nil)

	errs := m.Shutdown(context.Background())
	require.Len(t, errs, 1)
	require.Equal(t, []string{"http", "db"}, order)

	require.Nil(t, m.Shutdown(context.Background()))
	require.Len(t, order, 2)
}
