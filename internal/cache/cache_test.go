package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestSetGetDelete(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	assert.Nil(t, c.Get(ctx, "user:1"))

	c.Set(ctx, "user:1", []byte("meera"), time.Minute)
	assert.Equal(t, []byte("meera"), c.Get(ctx, "user:1"))

	mr.FastForward(2 * time.Minute)
	assert.Nil(t, c.Get(ctx, "user:1"))

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Delete(ctx, "a", "b")
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestJSONHelpers(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	type profile struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	c.SetJSON(ctx, "profile:4", profile{ID: 4, Name: "Kiran"}, time.Minute)

	var got profile
	require.True(t, c.GetJSON(ctx, "profile:4", &got))
	assert.Equal(t, profile{ID: 4, Name: "Kiran"}, got)

	require.NoError(t, mr.Set("profile:5", "{not json"))
	assert.False(t, c.GetJSON(ctx, "profile:5", &got))
	assert.False(t, c.GetJSON(ctx, "profile:6", &got))
}

func TestFailSafeWhenUnavailable(t *testing.T) {
	c := NewFromClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	ctx := context.Background()

	assert.Error(t, c.Ping(ctx))
	assert.NotPanics(t, func() {
		c.Set(ctx, "k", []byte("v"), time.Minute)
		c.Delete(ctx, "k")
	})
	assert.Nil(t, c.Get(ctx, "k"))

	var nilClient *Client
	assert.Nil(t, nilClient.Get(ctx, "k"))
	assert.Error(t, nilClient.Ping(ctx))
}
