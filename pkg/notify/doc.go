// Package notify renders and sends transactional email.
//
// ResendMailer delivers through the Resend HTTP API. LogMailer only logs the
// message and is used when email is disabled, so local runs never need an
// API key.
package notify
