package wire_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/command"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/result"
	"yqhp/syncbridge/internal/testutil"
	"yqhp/syncbridge/internal/wire"
)

func TestClientGet(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t)+"/", 0)

	v, err := c.Get("/value/1").Await()
	require.NoError(t, err)
	body := v.(map[string]any)
	assert.EqualValues(t, 1, body["value"])
	assert.EqualValues(t, 0, body["status"])
}

func TestClientPostEncodesBody(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t), 0)

	v, err := c.Post("/echo", map[string]any{"using": "css selector"}).Map(wire.Field("value")).Await()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"using": "css selector"}, v)
}

func TestClientDelete(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t), 0)

	v, err := c.Delete("/session/abc").Map(wire.Field("value")).Await()
	require.NoError(t, err)
	assert.Equal(t, "deleted abc", v)
}

func TestClientErrorStatusRejects(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t), 0)

	_, err := c.Get("/fail").Await()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /fail: status 500: unknown error")
}

func TestClientEmptyBody(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t), 0)

	v, err := c.Get("/empty").Await()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFieldRejectsNonMap(t *testing.T) {
	_, err := wire.Field("value")("text")
	assert.Error(t, err)
}

func TestClientAsCommandSurface(t *testing.T) {
	c := wire.NewClient(testutil.StartServer(t), 0)
	inst := command.WrapCommands(c, nil, command.WithLogger(zap.NewNop()))

	v, err := fiber.Run(context.Background(), func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "post", "echo", []any{"a", "b"})
	})
	require.NoError(t, err)

	// a decoded body carrying status becomes a result view
	view, ok := v.(*result.View)
	require.True(t, ok, "%T", v)
	got, _ := view.Get("value")
	assert.Equal(t, []any{"a", "b"}, got)

	_, err = fiber.Run(context.Background(), func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "get")
	})
	assert.Error(t, err)
}
