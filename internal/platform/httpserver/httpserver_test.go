package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		srv := New(":0", http.NotFoundHandler())
		assert.Equal(t, ":0", srv.Addr)
		assert.Equal(t, 30*time.Second, srv.WriteTimeout)
		assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	})

	t.Run("write timeout outlasts the upstream deadline", func(t *testing.T) {
		srv := New(":0", http.NotFoundHandler(), WithUpstreamDeadline(30*time.Second))
		assert.Equal(t, 45*time.Second, srv.WriteTimeout)
	})

	t.Run("zero deadline keeps the default", func(t *testing.T) {
		srv := New(":0", http.NotFoundHandler(), WithUpstreamDeadline(0))
		assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	})
}
