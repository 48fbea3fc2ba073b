package aio_test

import (
	"testing"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/stretchr/testify/require"
)

func TestOpKindString(t *testing.T) {
	require.Equal(t, "nop", aio.OpNop.String())
	require.Equal(t, "read", aio.OpRead.String())
	require.Equal(t, "writev", aio.OpWriteVector.String())
	require.Equal(t, "accept", aio.OpAccept.String())
	require.Equal(t, "recvmsg", aio.OpRecvMsg.String())
	require.Equal(t, "cancel", aio.OpCancel.String())
	require.Equal(t, "invalid", aio.OpKind(250).String())
}
