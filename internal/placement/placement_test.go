package placement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamerelay/internal/model"
)

func TestPoolRotates(t *testing.T) {
	a := model.Server{Host: "a", ServerPort: 1, InternalPort: 2}
	b := model.Server{Host: "b", ServerPort: 1, InternalPort: 2}
	p := NewPool(a, b)

	var got []string
	for i := 0; i < 3; i++ {
		srv, err := p.Provision(context.Background(), &model.Game{})
		require.NoError(t, err)
		got = append(got, srv.Host)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestEmptyPool(t *testing.T) {
	_, err := NewPool().Provision(context.Background(), &model.Game{})
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPool(model.Server{Host: "a"}).Provision(ctx, &model.Game{})
	assert.ErrorIs(t, err, context.Canceled)
}
