package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Confirm(ctx context.Context) error
	Resend(ctx context.Context) error
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ResetRequest(ctx context.Context) error
	ResetComplete(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from scanner until EOF, "exit" or "quit".
//
//	Not logged in: register, confirm, resend, login, reset, resetdone, exit
//	Logged in:     whoami, refresh, logout, exit
//
// Handlers report their own errors; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("authctl %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, refresh, logout, exit")
			} else {
				printlnFn("Available commands: register, confirm, resend, login, reset, resetdone, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "confirm":
			_ = a.Confirm(ctx)

		case "resend":
			_ = a.Resend(ctx)

		case "login":
			_ = a.Login(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "reset":
			_ = a.ResetRequest(ctx)

		case "resetdone":
			_ = a.ResetComplete(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
