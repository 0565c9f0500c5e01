package link

import (
	"context"
	"errors"
	"time"

	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/log"
	"go.uber.org/zap"
)

// serve answers requests one at a time until the context is done.
func (l *Link) serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-l.requests:
			if err := l.answer(ctx, req); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

// answer sends the response to a single request. Only transport failures
// are returned, handler failures are reported to the master with a CEP.
func (l *Link) answer(ctx context.Context, req proto.Packet) error {
	logger := log.FromContext(ctx).With(zap.Uint16("device_id", req.DeviceID))

	if l.served != nil && !l.served[req.DeviceID] {
		logger.Debug("Request for device not served")
		return l.SendError(ctx, req.DeviceID, amasp.ErrCodeUnknownDevice)
	}

	resp, err := l.handler(ctx, req)
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		logger.Info("Handler reported remote error", zap.Uint8("code", remote.Code))
		return l.SendError(ctx, req.DeviceID, remote.Code)
	case err != nil:
		logger.Error("Handler failed", zap.Error(err))
		return l.SendError(ctx, req.DeviceID, amasp.ErrCodeHandler)
	}

	_, err = l.slave.SendResponse(ctx, req.DeviceID, resp, len(resp))
	l.sent(ctx, proto.KindSRP, err)
	return err
}

// pollDevice requests a device periodically and logs the outcome.
func (l *Link) pollDevice(ctx context.Context, poll PollConfig) error {
	ctx = log.With(ctx, zap.Uint16("device_id", poll.DeviceID))
	log.FromContext(ctx).Info("Starting poller", zap.Duration("interval", poll.Interval))

	ticker := time.NewTicker(poll.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		resp, err := l.Request(ctx, poll.DeviceID, []byte(poll.Payload))
		var remote *RemoteError
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.As(err, &remote):
			log.FromContext(ctx).Warn("Device reported error", zap.Uint8("code", remote.Code))
		case err != nil:
			log.FromContext(ctx).Warn("Poll failed", zap.Error(err))
		default:
			log.FromContext(ctx).Info("Poll response", zap.ByteString("payload", resp.Payload))
		}
	}
}
