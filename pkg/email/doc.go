// Package email sends transactional auth emails (verification links,
// password resets) through a pluggable EmailSender interface.
//
// Two implementations are provided: a Postmark-backed client for
// production and a DevSender that writes emails to local files so flows
// can be exercised without an email service account.
package email
