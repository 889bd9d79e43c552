// Package watch bridges the streaming pipeline to display surfaces.
//
// A Watcher follows one symbol across every channel (ticker, trades,
// kline); a Grid follows many symbols over one shared socket with
// ticker updates only. Both own their socket lifecycle: closing a
// consumer closes its connection and cancels every pending timer.
//
// Debouncer is the on-demand counterpart: it delays a side-effecting
// fetch until user input settles.
package watch
