package elastic

import (
	"io"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Compile-time check: TransportLogger implements elastictransport.Logger.
var _ elastictransport.Logger = (*TransportLogger)(nil)

const maxLoggedBody = 4 << 10

// TransportLogger writes transport round trips to zap at debug level.
type TransportLogger struct {
	logger *zap.Logger
}

// NewTransportLogger creates a round-trip logger.
func NewTransportLogger(l *zap.Logger) *TransportLogger {
	return &TransportLogger{logger: l.Named("elasticsearch")}
}

// LogRoundTrip logs one request; failed round trips are logged as warnings.
func (t *TransportLogger) LogRoundTrip(
	req *http.Request, res *http.Response, err error, start time.Time, dur time.Duration,
) error {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Time("start", start),
		zap.Duration("duration", dur),
	}
	if res != nil {
		fields = append(fields, zap.Int("status", res.StatusCode))
	}
	if err != nil {
		t.logger.Warn("round trip failed", append(fields, zap.Error(err))...)
		return nil
	}
	if res != nil && res.StatusCode >= http.StatusInternalServerError {
		t.logger.Warn("round trip", fields...)
		return nil
	}
	if res != nil && res.Body != nil && t.ResponseBodyEnabled() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxLoggedBody))
		fields = append(fields, zap.ByteString("response", body))
	}
	t.logger.Debug("round trip", fields...)
	return nil
}

// RequestBodyEnabled is false: bodies can be large bulk payloads.
func (t *TransportLogger) RequestBodyEnabled() bool { return false }

// ResponseBodyEnabled asks the transport for a copy of the response body
// when debug logging is on.
func (t *TransportLogger) ResponseBodyEnabled() bool {
	return t.logger.Core().Enabled(zapcore.DebugLevel)
}
