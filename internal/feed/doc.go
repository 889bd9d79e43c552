// Package feed provides the one-shot REST collaborators of the
// streaming pipeline: the 24h ticker snapshot used to seed symbol
// state before the socket opens, and the volume/mover queries the grid
// command uses to pick its symbol set.
package feed
