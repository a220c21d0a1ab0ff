// Package loader discovers remotes on disk and builds their script states.
//
// A remote is any directory below the remotes root that carries a
// meta.prop file. Script and settings files are looked up per platform
// first (remote_linux.lua, settings_linux.prop) and then without suffix.
// Layout files are not parsed here.
package loader
