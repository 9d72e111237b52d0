// Package fanout delivers real-time payloads to a user's live connections
// across multiple server processes.
//
// A Hub tracks the sessions connected to the local process; a Backplane
// relays published payloads to the other processes so every session sees
// each payload exactly once, regardless of which process it is attached to.
//
// Basic usage:
//
//	hub := fanout.NewHub(fanout.NewMemoryBackplane())
//	defer hub.Close()
//
//	session, _ := hub.Connect(ctx, userID)
//	defer hub.Disconnect(userID, session.ID())
//
//	for payload := range session.Receive() {
//		conn.Write(payload)
//	}
//
// For multi-process deployments use NewRedisBackplane. When the backplane
// fails, local delivery keeps working and Healthy reports the degraded
// state until a publish succeeds again.
package fanout
