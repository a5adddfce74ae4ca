package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/directchat/internal/client"
	"github.com/vovakirdan/directchat/internal/log"
	"github.com/vovakirdan/directchat/internal/proto"
)

type globalOptions struct {
	server   string
	timeout  time.Duration
	logLevel string
	email    string
	password string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, client.UserMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "dmclient",
		Short:         "Terminal client for directchat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("DMCLIENT_SERVER", "http://localhost:3000"), "server base URL")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.email, "email", os.Getenv("DMCLIENT_EMAIL"), "account email")
	flags.StringVar(&opts.password, "password", os.Getenv("DMCLIENT_PASSWORD"), "account password")

	root.AddCommand(
		newSignupCmd(opts),
		newLoginCmd(opts),
		newContactsCmd(opts),
		newChatCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session bundles everything one invocation needs.
type session struct {
	api    *client.HTTPClient
	store  *client.SessionStore
	logger *zerolog.Logger
}

func newSession(opts *globalOptions) (*session, error) {
	logger := log.NewWithWriter(opts.logLevel, os.Stderr)

	api, err := client.NewHTTPClient(opts.server, opts.timeout)
	if err != nil {
		return nil, err
	}
	dial := client.WSDialer(api.WebSocketURL(), api.SessionHeader, logger)
	return &session{
		api:    api,
		store:  client.NewSessionStore(api, dial, logger),
		logger: logger,
	}, nil
}

func (s *session) login(ctx context.Context, opts *globalOptions) error {
	if opts.email == "" || opts.password == "" {
		return errors.New("--email and --password are required")
	}
	return s.store.Login(ctx, opts.email, opts.password)
}

// close ends the session on the server with a fresh deadline; the command context may be gone.
func (s *session) close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.store.Logout(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("logout failed")
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newSignupCmd(opts *globalOptions) *cobra.Command {
	var fullName string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.email == "" || opts.password == "" {
				return errors.New("--email and --password are required")
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			if err := s.store.Signup(ctx, fullName, opts.email, opts.password); err != nil {
				return err
			}
			defer s.close(opts.timeout)

			user := s.store.State().User
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s (id %d)\n", user.FullName, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "", "display name")
	return cmd
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show who is online",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			if err := s.login(ctx, opts); err != nil {
				return err
			}
			defer s.close(opts.timeout)

			// The first presence snapshot follows the handshake.
			waitOnline(ctx, s.store, time.Second)

			st := s.store.State()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s (id %d)\n", st.User.FullName, st.User.ID)
			fmt.Fprintf(out, "Online users: %v\n", st.OnlineUsers)
			return nil
		},
	}
}

func newContactsCmd(opts *globalOptions) *cobra.Command {
	var chatsOnly bool
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts with their presence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			if err := s.login(ctx, opts); err != nil {
				return err
			}
			defer s.close(opts.timeout)

			conv := client.NewConversationStore(s.api, s.store, client.ConversationOptions{Logger: s.logger})
			defer conv.Close()

			var users []proto.UserDTO
			if chatsOnly {
				conv.SetActiveTab(client.TabChats)
				if err := conv.LoadChatPartners(ctx); err != nil {
					return err
				}
				users = conv.State().Chats
			} else {
				conv.SetActiveTab(client.TabContacts)
				if err := conv.LoadContacts(ctx); err != nil {
					return err
				}
				users = conv.State().Contacts
			}

			waitOnline(ctx, s.store, time.Second)
			presence := s.store.State()

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "Nobody here yet.")
				return nil
			}
			for _, u := range users {
				status := "offline"
				if presence.IsOnline(u.ID) {
					status = "online"
				}
				fmt.Fprintf(out, "%6d  %-24s %-32s %s\n", u.ID, u.FullName, u.Email, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chatsOnly, "chats", false, "only list accounts with an existing conversation")
	return cmd
}

// waitOnline waits briefly for the first presence snapshot.
func waitOnline(ctx context.Context, store *client.SessionStore, limit time.Duration) {
	ready := make(chan struct{})
	var once sync.Once
	sub := store.Watch(func(st client.SessionState) {
		if st.OnlineUsers != nil {
			once.Do(func() { close(ready) })
		}
	})
	defer sub.Cancel()

	if store.State().OnlineUsers != nil {
		return
	}
	select {
	case <-ready:
	case <-time.After(limit):
	case <-ctx.Done():
	}
}

func trimCommand(line, name string) (string, bool) {
	if !strings.HasPrefix(line, name) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, name)), true
}
