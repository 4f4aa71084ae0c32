// Package frontier implements the URL scheduling core: it accepts
// discovered and refetch-ready URLs, records their state durably, and
// hands dispatchable URLs back out under politeness and ordering
// constraints, one logical queue per (crawl, host) pair.
//
// # Keyspace
//
// Two families in the store, with a shared prefix per queue
// (identifiers have '_' escaped as "%5F" since '_' separates fields):
//
//	URL   esc(crawl)_esc(queue)_{url}                 -> scheduling key, or empty when completed
//	SCHED esc(crawl)_esc(queue)_{nfd10}_{url}         -> URLInfo record
//
// nfd10 is the next fetch date in epoch seconds, zero-padded to 10 digits
// so lexicographic order equals time order. The existence value always
// mirrors the live scheduling key byte-for-byte, which lets a put locate
// and replace the scheduled entry without scanning.
//
// # URL Lifecycle
//
//  1. Discovered: scheduled at now unless already known
//  2. Known with a future refetch date: rescheduled at that date
//  3. Known with date 0: completed, existence value emptied, never dispatched
//  4. Dispatch: emitted in fetch-time order, then held in memory for the
//     politeness delay; holds decay and are lost on restart by design
//
// # Recovery
//
// On startup the registry and per-queue counters are rebuilt by scanning
// both families. The URL family is authoritative (empty vs non-empty
// value); the SCHED family is cross-checked per queue and any mismatch
// refuses startup.
package frontier
