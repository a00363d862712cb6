package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/utask/internal/common"
)

// getSimpleText and getPassword point to the interactive input helpers and
// are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) fail(err error) error {
	fmt.Fprintln(a.out, "Error:", err)
	return err
}

// Register creates an account. The server mails a confirmation token.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	first, err := getSimpleText(a.reader, "First name (optional)", a.out)
	if err != nil {
		return err
	}
	last, err := getSimpleText(a.reader, "Last name (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.auth.Register(ctx, email, password, first, last)
	if err != nil {
		return a.fail(err)
	}

	a.userID = id
	fmt.Fprintf(a.out, "Registered, user id %d. Check your mailbox for the confirmation token.\n", id)
	return nil
}

// Confirm consumes a signup confirmation token.
func (a *App) Confirm(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter confirmation token", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.ConfirmEmail(ctx, token); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Email confirmed, you can log in now.")
	return nil
}

// Resend asks for a new confirmation token. The user id from the last
// registration is offered as default.
func (a *App) Resend(ctx context.Context) error {
	prompt := "Enter user id"
	if a.userID != 0 {
		prompt = fmt.Sprintf("Enter user id [%d]", a.userID)
	}

	raw, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}

	id := a.userID
	if raw != "" {
		if id, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return a.fail(fmt.Errorf("invalid user id %q", raw))
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.ResendConfirmation(ctx, id); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Confirmation sent.")
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.Login(ctx, email, password); err != nil {
		return a.fail(err)
	}

	a.userName = email
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.Refresh(ctx); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Session renewed.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.auth.WhoAmI(ctx)
	if err != nil {
		return a.fail(err)
	}

	fmt.Fprintf(a.out, "user %s, role %s, access token valid until %s\n", id.UserID, id.RoleID, id.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

// ResetRequest starts a password reset. The account stays locked until the
// reset is completed.
func (a *App) ResetRequest(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.RequestPasswordReset(ctx, email); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Check your mailbox for the reset token.")
	return nil
}

func (a *App) ResetComplete(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter reset token", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.auth.CompletePasswordReset(ctx, token, password); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Password changed, you can log in now.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.auth.Logout(ctx)
	a.userName = ""
	if err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
