// Package market implements the Reconciliation Store.
//
// The store:
//   - Holds one SymbolState per symbol (ticker snapshot, trade tape,
//     forming candle, directional flash)
//   - Merges a REST-fetched seed snapshot with streaming events
//   - Computes Up/Down flash transitions against the previous stored
//     price and clears them on a cancellable 500ms timer
//   - Notifies subscribers after every applied event
package market
