// Copyright 2025 Joseph Cumines
//
// Decoding and admission of inbound messages, shared by both transports

package transport

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/protocol"
)

type inbound struct {
	queue   *CommandQueue
	limiter *RateLimiter
	metrics *Metrics
	logger  *zap.Logger
	name    string
}

// accept decodes one inbound message and queues it. When the command is
// refused, accept returns the response to send back immediately.
func (in *inbound) accept(data []byte) (protocol.Response, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return protocol.Response{}, false
	}

	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		in.metrics.IncMalformed(in.name)
		in.logger.Warn("skipping malformed message",
			zap.Error(err),
			zap.Int("bytes", len(data)),
		)
		return protocol.Response{}, false
	}

	if retryAfter, ok := in.limiter.Admit(); !ok {
		err := protocol.RateLimited(retryAfter)
		in.metrics.RecordCommand(cmd.Name, protocol.Code(err).String(), 0)
		in.logger.Warn("rate limited command",
			zap.String("command", cmd.Name),
			zap.String("id", cmd.ID),
			zap.Duration("retry_after", retryAfter),
		)
		return protocol.Fail(cmd.ID, err), true
	}

	in.logger.Debug("queued command",
		zap.String("command", cmd.Name),
		zap.String("id", cmd.ID),
	)
	in.queue.Push(cmd)
	return protocol.Response{}, false
}

// oversized records an inbound message that exceeded limit bytes and was
// discarded unread.
func (in *inbound) oversized(limit int) {
	in.metrics.IncMalformed(in.name)
	in.logger.Warn("skipping oversized message", zap.Int("limit", limit))
}
