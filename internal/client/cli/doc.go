// Package cli implements authctl, an interactive shell over the identity
// service: sign up, confirm the email address, sign in, rotate the session,
// reset a password and sign out.
package cli
