// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout or stderr output, plus an optional OpenTelemetry log bridge
//   - context field injection (trace_id, span_id, request.id, conversation.id)
//   - secret redaction by field name and value pattern
//   - sampling below Error; errors are never sampled
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.Info(ctx, "request handled", zap.String("intent", "pnl"))
//
// The core packages take a plain *zap.Logger; pass logger.Underlying().
//
// # Secret Redaction
//
// Secrets are redacted at three layers: the config.Secret type, encoder
// field-name filtering, and encoder value patterns. Use Secret or
// RedactedString to log that a credential is present:
//
//	logger.Info(ctx, "classifier configured", logging.Secret("api_key", cfg.Classifier.APIKey))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
package logging
