// Package logging configures cronrunner's structured logging.
//
// A small wrapper (logging.Logger) sits on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - Programmatic output JSON-structured
//   - Levels and sink swappable at runtime via Service.Apply, so a
//     config.Manager subscriber can retune logging without a restart
package logging
