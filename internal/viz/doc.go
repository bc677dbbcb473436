// Package viz renders a running Cahn-Hilliard simulation in the terminal.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [Model]: live view of one run with a heat map and energy graph
//   - [RunInteractive]: preset menu and parameter editor in front of Model
//   - [HeatMap] and [Canvas]: colour and Braille renderings of a lattice
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset to the initial field
//	+/-   - Double or halve the sweeps per frame
//	B     - Toggle the Braille phase view
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
package viz
