package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Set_Normalizes_Key(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Type", "text/html")
	assert.Equal(t, "text/html", h["content-type"])
}

func Test_Get_Is_Case_Insensitive(t *testing.T) {
	h := NewHeaders()
	h.Set("HoSt", "localhost:3000")
	assert.Equal(t, "localhost:3000", h.Get("host"))
	assert.Equal(t, "localhost:3000", h.Get("HOST"))
	assert.Equal(t, "", h.Get("user-agent"))
}

func Test_Duplicate_Set_Last_Wins(t *testing.T) {
	h := NewHeaders()
	h.Set("Cookie", "a=1")
	h.Set("cookie", "b=2")
	assert.Len(t, h, 1)
	assert.Equal(t, "b=2", h.Get("Cookie"))
}

func Test_Has_And_Del(t *testing.T) {
	h := NewHeaders()
	h.Set("X-Debug", "1")
	assert.True(t, h.Has("x-debug"))
	h.Del("X-DEBUG")
	assert.False(t, h.Has("x-debug"))
}
