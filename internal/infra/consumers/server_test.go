package consumers

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tracetap/internal/domain"
)

func TestStartHubServerBindFailureClosesHub(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	defer listener.Close()

	hub := NewHub("checkout", 4, zaptest.NewLogger(t))
	err = StartHubServer(context.Background(), listener.Addr().String(), hub, zaptest.NewLogger(t))
	require.Error(t, err)
	code, _ := domain.CodeFrom(err)
	assert.Equal(t, domain.CodeUnavailable, code)
	assert.True(t, hub.full(), "closed hub refuses clients")
}
