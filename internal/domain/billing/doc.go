// Package billing provides the domain model for the customer invoice and
// payment allocation ledger.
//
// This package implements the settlement bounded context, which is
// responsible for:
//   - Issuing customer invoices with per-line VAT and rounding rules
//   - Recording incoming payments and tracking how much of each is allocated
//   - Linking payments to invoices through allocation entries
//
// Key Aggregates:
//   - Invoice: A customer invoice with lifecycle from draft to settled
//   - IncomingPayment: Money received from a client, allocatable to invoices
//
// Entities:
//   - Allocation: Links an amount of one payment to one invoice
//
// Invoice remainders and payment allocation totals are always derived from
// allocations, never mutated independently, so the ledger stays consistent
// under reversal and compensation.
package billing
