package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/utask/internal/client/client"
	"github.com/dmitrijs2005/utask/internal/client/config"
)

// AuthClient is the server API the shell drives. *client.GRPCClient
// implements it.
type AuthClient interface {
	Register(ctx context.Context, email string, password []byte, firstName, lastName string) (int64, error)
	ConfirmEmail(ctx context.Context, token string) error
	ResendConfirmation(ctx context.Context, userID int64) error
	Login(ctx context.Context, email string, password []byte) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token string, password []byte) error
	WhoAmI(ctx context.Context) (*client.Identity, error)
	LoggedIn() bool
	Close() error
}

type App struct {
	config   *config.Config
	auth     AuthClient
	reader   *bufio.Reader
	out      io.Writer
	userName string
	userID   int64
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return newApp(c, apiClient, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, auth AuthClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, auth: auth, reader: bufio.NewReader(in), out: out}
}

func (a *App) isLoggedIn() bool {
	return a.auth.LoggedIn()
}

func (a *App) getStatus() string {
	if a.isLoggedIn() && a.userName != "" {
		return fmt.Sprintf("(%s)", a.userName)
	}
	return ""
}

// withTimeout bounds one server call.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) Run(ctx context.Context) {
	defer a.auth.Close()

	fmt.Fprintln(a.out, "authctl (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
