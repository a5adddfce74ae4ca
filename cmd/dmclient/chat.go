package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/directchat/internal/client"
	"github.com/vovakirdan/directchat/internal/proto"
)

const chatHelp = `Type a message and press Enter to send.
  /image <url>   send an image
  /sound         toggle the bell for incoming messages
  /quit          leave`

func newChatCmd(opts *globalOptions) *cobra.Command {
	var sound bool
	cmd := &cobra.Command{
		Use:   "chat <peerId>",
		Short: "Open a live conversation with another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || peerID <= 0 {
				return fmt.Errorf("invalid peer id %q", args[0])
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			if err := s.login(ctx, opts); err != nil {
				return err
			}
			defer s.close(opts.timeout)

			out := cmd.OutOrStdout()
			conv := client.NewConversationStore(s.api, s.store, client.ConversationOptions{
				SoundEnabled: sound,
				Notifier:     bell{out: out},
				Logger:       s.logger,
			})
			defer conv.Close()

			peer, err := findPeer(ctx, conv, peerID)
			if err != nil {
				return err
			}
			conv.SelectPeer(&peer)
			if err := conv.LoadMessages(ctx, peer.ID); err != nil {
				return err
			}

			p := newPrinter(out, s.store.CurrentUserID(), peer)
			p.print(conv.State())
			convSub := conv.Watch(p.print)
			defer convSub.Cancel()

			presenceSub := s.store.Watch(p.presence)
			defer presenceSub.Cancel()
			p.presence(s.store.State())

			if err := conv.SubscribeToMessages(); err != nil {
				return err
			}
			go watchSocket(s.store, out, cancel)

			fmt.Fprintln(out, chatHelp)
			return readInput(ctx, cmd.InOrStdin(), out, conv, cancel)
		},
	}
	cmd.Flags().BoolVar(&sound, "sound", true, "ring the terminal bell for incoming messages")
	return cmd
}

func findPeer(ctx context.Context, conv *client.ConversationStore, peerID int64) (proto.UserDTO, error) {
	if err := conv.LoadContacts(ctx); err != nil {
		return proto.UserDTO{}, err
	}
	for _, u := range conv.State().Contacts {
		if u.ID == peerID {
			return u, nil
		}
	}
	return proto.UserDTO{}, fmt.Errorf("user %d not found", peerID)
}

// watchSocket ends the chat when the server drops the live connection.
func watchSocket(store *client.SessionStore, out io.Writer, cancel context.CancelFunc) {
	ws, ok := store.Socket().(*client.WSSocket)
	if !ok {
		return
	}
	<-ws.Done()
	if err := ws.Err(); err != nil {
		fmt.Fprintln(out, client.UserMessage(err))
		cancel()
	}
}

func readInput(ctx context.Context, in io.Reader, out io.Writer, conv *client.ConversationStore, cancel context.CancelFunc) error {
	lines := make(chan string)
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			if line == "/quit" {
				return nil
			}
			if line == "/sound" {
				if conv.ToggleSound() {
					fmt.Fprintln(out, "sound on")
				} else {
					fmt.Fprintln(out, "sound off")
				}
				continue
			}

			input := client.SendInput{Text: line}
			if url, ok := trimCommand(line, "/image"); ok {
				input = client.SendInput{Image: url}
			}
			if _, err := conv.SendMessage(ctx, input); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				fmt.Fprintln(out, "! "+client.UserMessage(err))
			}
		}
	}
}

// printer writes each confirmed message once, in the order the store shows them.
type printer struct {
	out    io.Writer
	selfID int64
	peer   proto.UserDTO

	mu      sync.Mutex
	printed map[int64]bool
	online  *bool
}

func newPrinter(out io.Writer, selfID int64, peer proto.UserDTO) *printer {
	return &printer{out: out, selfID: selfID, peer: peer, printed: make(map[int64]bool)}
}

func (p *printer) print(st client.ConversationState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range st.Messages {
		if m.Pending || p.printed[m.ID] {
			continue
		}
		p.printed[m.ID] = true

		who := p.peer.FullName
		if m.SenderID == p.selfID {
			who = "you"
		}
		body := m.Text
		if m.Image != "" {
			if body != "" {
				body += " "
			}
			body += "[image " + m.Image + "]"
		}
		fmt.Fprintf(p.out, "%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, body)
	}
}

func (p *printer) presence(st client.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Socket != client.SocketConnected || st.OnlineUsers == nil {
		return
	}
	online := st.IsOnline(p.peer.ID)
	if p.online != nil && *p.online == online {
		return
	}
	p.online = &online
	if online {
		fmt.Fprintf(p.out, "* %s is online\n", p.peer.FullName)
	} else {
		fmt.Fprintf(p.out, "* %s is offline\n", p.peer.FullName)
	}
}

// bell rings the terminal for incoming messages while sound is on.
type bell struct {
	out io.Writer
}

func (b bell) Notify(client.ChatMessage) {
	fmt.Fprint(b.out, "\a")
}

var _ client.Notifier = bell{}
