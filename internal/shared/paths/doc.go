// Package paths confines filesystem access of remote scripts.
//
// Every path a script hands to the host (include, fs.*) is resolved through
// a Sandbox. Resolution is symlink-aware: both the sandbox roots and the
// requested path are canonicalized before the containment check, so
// "../x", absolute paths outside the roots and symlinks pointing out of
// the remote directory are all rejected with ErrSandboxViolation.
//
// # Usage
//
//	box, err := paths.New(remoteDir, scratchDir)
//	if err != nil {
//	    return err
//	}
//	target, err := box.ResolveRelative("lib/helper.lua")
//	if errors.Is(err, paths.ErrSandboxViolation) {
//	    // reject
//	}
package paths
