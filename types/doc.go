// Package types provides unified type definitions for the convoflow framework:
// the activity model exchanged with channels, conversation references,
// token and invoke payloads, the per-turn context, and the structured
// error type shared by every package.
package types
