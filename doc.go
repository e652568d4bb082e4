// Package certsync is a client-side cache and synchronization engine for a
// remote certificate service.
//
// Calls are made through a Client and return a Handle. Identical calls made
// while one is in flight share a single request; the key is the operation
// name plus its non-empty arguments:
//
//	findCertificate({"id":"A","locale":"es"})
//
// Every successful outcome is reconciled into the Store before any handle
// observes it, so a caller that waits on a handle and then reads
// Client.Snapshot always sees the effect of its own call.
//
// State:
//
//	List                  - last fetchAllCertificates result, replaced wholesale
//	Current               - last fetched, completed or minted certificate
//	CurrentMintingStatus  - Current.Minting.Tx is present
//	MintingTxData         - opaque transaction payload of the last mint
//
// Result cache (optional): when Options.Provider is set, query responses are
// stored as framed entries tagged with a generation per certificate and per
// list. Mutations bump the tags they touch, so a stale response is never
// served and a response fetched across a mutation is never written.
package certsync
