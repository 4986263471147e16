package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/chat"
	"github.com/arcreactor/workspace/internal/store"
)

const chatHelp = `commands:
  /samplesheet   print the samplesheet the agent produced
  /config        print the Nextflow config the agent produced
  /validate      validate the agent's samplesheet
  /clear         start a new conversation
  /quit          leave`

func newChatCommand(a *app) *cobra.Command {
	var (
		message     string
		pipeline    string
		openTimeout time.Duration
		stats       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the pipeline agent",
		Long: "Open the agent chat stream. Without --message an interactive " +
			"prompt reads one message per line.\n\n" + chatHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			url, err := a.chatURL()
			if err != nil {
				return err
			}

			chatStore := store.NewChatStore()
			workspace := store.NewWorkspaceStore()
			workspace.SetPipeline(pipeline, "")

			sess := chat.NewSession(chat.Options{
				URL:              url,
				InitialDelay:     a.cfg.Chat.InitialDelay,
				ReconnectDelay:   a.cfg.Chat.ReconnectDelay,
				MaxReconnects:    a.cfg.Chat.MaxReconnects,
				HandshakeTimeout: a.cfg.Chat.HandshakeTimeout,
				Chat:             chatStore,
				Workspace:        workspace,
				Logger:           a.logger.Component("chat"),
				Metrics:          a.metrics,
			})
			sess.Start(ctx)
			defer sess.Stop()

			t := &transcript{out: out}
			defer chatStore.Subscribe(t.render)()

			if err := waitOpen(ctx, sess, chatStore, openTimeout); err != nil {
				return err
			}

			r := &repl{sess: sess, chat: chatStore, workspace: workspace, out: out}
			if message != "" {
				err = r.turn(ctx, message)
			} else {
				err = r.run(ctx, cmd.InOrStdin())
			}

			if stats {
				s := a.metrics.Snapshot()
				fmt.Fprintf(cmd.ErrOrStderr(), "frames %d, dropped %d, reconnects %d\n",
					s.FramesHandled, s.FramesDropped, s.Reconnects)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&message, "message", "m", "", "send one message, print the reply and exit")
	f.StringVar(&pipeline, "pipeline", "nf-core/scrnaseq", "pipeline used by /validate")
	f.DurationVar(&openTimeout, "connect-timeout", 15*time.Second, "how long to wait for the chat stream")
	f.BoolVar(&stats, "stats", false, "print stream counters on exit")
	return cmd
}

// waitOpen blocks until the session is open, has failed or timeout passes.
func waitOpen(ctx context.Context, sess *chat.Session, chatStore *store.ChatStore, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		switch sess.State() {
		case chat.StateOpen:
			return nil
		case chat.StateFailed, chat.StateClosed:
			if msg := chatStore.Err(); msg != "" {
				return errors.New(msg)
			}
			return errors.New("chat stream closed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("chat stream not open after %s", timeout)
		case <-tick.C:
		}
	}
}

type repl struct {
	sess      *chat.Session
	chat      *store.ChatStore
	workspace *store.WorkspaceStore
	out       io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, chatHelp)
		case "/clear":
			r.sess.ClearMessages()
			r.workspace.Clear()
		case "/samplesheet":
			fmt.Fprintln(r.out, orNone(r.workspace.Samplesheet()))
		case "/config":
			fmt.Fprintln(r.out, orNone(r.workspace.Config()))
		case "/validate":
			result, err := r.workspace.ValidateSamplesheet()
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				continue
			}
			printIssues(r.out, result)
		default:
			if err := r.turn(ctx, line); err != nil {
				if errors.Is(err, chat.ErrNotConnected) || ctx.Err() != nil {
					return err
				}
				fmt.Fprintln(r.out, "error:", err)
			}
		}
	}
}

// errReplyDropped reports a socket lost before the reply finished.
var errReplyDropped = errors.New("chat stream dropped before the reply finished")

// turn sends text and waits until the reply finishes or the socket it
// streams on goes away.
func (r *repl) turn(ctx context.Context, text string) error {
	wake := make(chan struct{}, 1)
	defer r.chat.Subscribe(func(st store.ChatState) {
		if !st.IsLoading || st.Error != "" {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	})()

	if err := r.sess.SendMessage(text); err != nil {
		return err
	}
	conn := r.sess.Connection()

	// A close frame changes no store state until the reconnect budget runs
	// out, so the connection is also checked on a tick.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for r.chat.IsLoading() {
		if conn == 0 || r.sess.Connection() != conn {
			if msg := r.chat.Err(); msg != "" {
				return fmt.Errorf("%w: %s", errReplyDropped, msg)
			}
			return errReplyDropped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.sess.Done():
			return chat.ErrNotConnected
		case <-wake:
		case <-tick.C:
		}
	}
	if msg := r.chat.Err(); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// transcript prints the streaming assistant reply as it grows. Text is
// sanitized as a whole, so only growth that keeps the printed prefix is
// written mid-stream; the final text is reprinted if it diverged.
type transcript struct {
	mu       sync.Mutex
	out      io.Writer
	msgID    string
	printed  string
	finished bool
	tools    map[string]store.ToolState
	lastErr  string
}

func (t *transcript) render(st store.ChatState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Error != "" && st.Error != t.lastErr {
		fmt.Fprintf(t.out, "\n[%s]\n", st.Error)
	}
	t.lastErr = st.Error

	if len(st.Messages) == 0 {
		t.msgID = ""
		return
	}
	last := st.Messages[len(st.Messages)-1]
	if last.Role != store.RoleAssistant {
		return
	}
	if last.ID != t.msgID {
		t.msgID = last.ID
		t.printed = ""
		t.finished = false
		t.tools = make(map[string]store.ToolState)
	}
	if t.finished {
		return
	}

	for _, inv := range last.ToolInvocations {
		if t.tools[inv.ToolCallID] != inv.State {
			t.tools[inv.ToolCallID] = inv.State
			fmt.Fprintf(t.out, "\n[%s: %s]\n", inv.ToolName, inv.State)
		}
	}

	clean := sanitize(last.Content)
	if strings.HasPrefix(clean, t.printed) {
		fmt.Fprint(t.out, clean[len(t.printed):])
		t.printed = clean
	}
	if !last.IsStreaming {
		if clean != t.printed {
			fmt.Fprintf(t.out, "\n%s", clean)
		}
		fmt.Fprintln(t.out)
		t.finished = true
	}
}
