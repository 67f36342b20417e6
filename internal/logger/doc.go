// Package logger wraps zap to offer:
//   - a global sugared logger writing a console format to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every pipeline step receives a context and logs through it, so the
// component name and the package being staged follow each message.
package logger
