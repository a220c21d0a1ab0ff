// Package sandbox hosts one remote's Lua script.
//
// A State wraps a gopher-lua interpreter opened with a reduced standard
// library, the capability modules and a sandboxed include. Every top-level
// entry into the script (load, action, event, detect, timer or callback)
// runs under a fresh instruction budget; a tripped budget aborts only that
// call and leaves the State usable.
//
// The memory cap applies to what the State itself holds. Process heap
// growth only prompts a measurement of the State's reachable values, and
// builtins that can multiply their input reserve their result first.
//
// A State is not safe for concurrent use. After construction only the
// owning worker goroutine may call into it.
package sandbox
