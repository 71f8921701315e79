package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/creditwise/credit-gateway/internal/metrics"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OpMeta is the static metadata attached to one instrumented operation.
type OpMeta struct {
	Method  string
	Route   string
	Feature string
}

// InstrumentConfig controls when the wrapper emits its log record. The
// duration histogram is always recorded. A record is emitted only when both
// thresholds pass: outcome class at least MinSeverity AND status at least
// MinStatus.
type InstrumentConfig struct {
	Logger      *zap.Logger
	Enabled     bool
	MinSeverity string // info|warn|error, default error (5xx only)
	MinStatus   int
}

// Outcome classes, ordered by severity.
const (
	classOK          = "ok"
	classClientError = "client_error"
	classServerError = "server_error"
)

// Instrument wraps a handler to time it, classify its outcome, and emit one
// observability record per invocation. The wrapped handler's result and error
// propagate unchanged; the wrapper never participates in control flow.
func Instrument(cfg InstrumentConfig, meta OpMeta, h echo.HandlerFunc) echo.HandlerFunc {
	minRank := severityRank(cfg.MinSeverity)
	return func(c echo.Context) error {
		start := time.Now()
		err := h(c)
		elapsed := time.Since(start)

		status := statusOf(c, err)
		class := classify(status)
		metrics.RequestDuration.WithLabelValues(meta.Route, class).Observe(elapsed.Seconds())

		if cfg.Enabled && cfg.Logger != nil && classRank(class) >= minRank && status >= cfg.MinStatus {
			fields := []zap.Field{
				zap.String("method", meta.Method),
				zap.String("route", meta.Route),
				zap.String("feature", meta.Feature),
				zap.Int("status", status),
				zap.String("class", class),
				zap.Duration("duration", elapsed),
			}
			if id, ok := IdentityFromCtx(c); ok {
				fields = append(fields, zap.String("subject", id.Subject))
			}
			switch class {
			case classServerError:
				cfg.Logger.Error("operation", fields...)
			case classClientError:
				cfg.Logger.Warn("operation", fields...)
			default:
				cfg.Logger.Info("operation", fields...)
			}
		}

		return err
	}
}

// statusOf recovers the response status even when the handler returned an
// error instead of writing one.
func statusOf(c echo.Context, err error) int {
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

func classify(status int) string {
	switch {
	case status >= 500:
		return classServerError
	case status >= 400:
		return classClientError
	default:
		return classOK
	}
}

func classRank(class string) int {
	switch class {
	case classServerError:
		return 2
	case classClientError:
		return 1
	default:
		return 0
	}
}

func severityRank(s string) int {
	switch s {
	case "info":
		return 0
	case "warn":
		return 1
	default: // error is the default threshold
		return 2
	}
}
