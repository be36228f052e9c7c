// Package children manages the children a parent orders sandwiches for and
// lists the schools they can attend.
//
// A child belongs to exactly one parent. Every read and write checks that
// ownership, so one parent can never see or change another's children. The
// sandwich preferences stored on a child prefill new orders; an order keeps
// its own copy once it is placed.
package children
