// Package commands implements the valuate CLI: run a valuation case, print
// its sensitivity grid, or self-check the engine against the reference case.
package commands
