// Package broadcast implements the state machine driving a live-broadcast
// production session. The whole session is modelled as an immutable
// BroadcastState value; Reduce consumes one Action at a time and returns a
// structurally-new snapshot, so the reducer is the single consistency
// authority for participant presence, the ordered stage queue, and the chat
// topology. Callers own the current value and thread it explicitly.
package broadcast
