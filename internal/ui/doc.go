// Package ui implements the Bubble Tea console for groupsync.
//
// The model renders one toggle per schedule scope, a floating countdown for
// the active schedule and an optional log pane. Every rendered widget holds
// an engine mount; mounts are reconciled with the rendered rows after each
// store change and released when the program exits.
package ui
