// Package ipr implements a condition-secured payment-request protocol.
//
// A receiver creates a PaymentRequest and derives a deterministic execution
// condition from its fields plus a private seed. The request travels to the
// sender out of band as a wire packet. When the payment arrives back over a
// ledger, the receiver regenerates the condition from the packet contents
// alone and fulfills the transfer if it matches, so no per-request state is
// ever stored on the receiving side.
package ipr
