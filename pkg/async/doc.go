// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs fire-and-forget work (confirmation emails after a payment is
// reconciled) with panic recovery, a timeout and error logging.
//
// Batch runs a bounded number of workers over a slice and returns every
// error rather than stopping at the first one. The scheduler uses it to
// write delivery status changes.
package async
