// Package types provides shared data structures for the remote host.
//
// This package defines the identifiers and wire shapes exchanged between
// the loader, the per-remote workers and whatever transport sits in front
// of them.
//
// Core Types:
//   - RemoteID, ActionID: remote and action identity
//   - Remote, RemoteMeta: a loaded remote and its meta.prop contents
//   - Limits: per-script resource budget
//
// Wire Types:
//   - CallActionRequest: {"action": "...", "args": [...] | null}
//   - OutboundEvent: {"action": "<id>", "args": {...}}
//   - ServerMessage: tagged update/error envelope for transports
//
// Example Usage:
//
//	req, err := types.DecodeCallActionRequest(payload)
//	if err != nil {
//	    return err
//	}
//	err = worker.Send(ctx, req)
package types
