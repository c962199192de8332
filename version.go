// Package ohosbuild holds build metadata shared by the command and the
// MCP server.
package ohosbuild

// Version is the released version of ohosbuild.
const Version = "0.3.0"
