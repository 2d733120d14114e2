package ingest

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type eofStream struct{}

func (eofStream) Recv(context.Context) (BlockchainUpdate, error) {
	return BlockchainUpdate{}, io.EOF
}

func TestSupervisor_EOFEndsCleanly(t *testing.T) {
	block := NewBlockAnalyzer(nil)
	balanceA := NewBalanceAnalyzer(nil, DefaultChunkSize)
	sup := NewSupervisor(block, balanceA)

	err := sup.Run(context.Background(), eofStream{})
	assert.NoError(t, err)
}
