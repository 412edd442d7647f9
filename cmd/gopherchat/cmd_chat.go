package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/gopherchat/internal/render"
	"github.com/user/gopherchat/internal/stream"
	"github.com/user/gopherchat/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat with the server, streaming responses to the terminal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id types.ConversationID
		if len(args) == 1 {
			id = types.ConversationID(args[0])
		}
		return runChat(cmd.Context(), id)
	},
}

func runChat(parent context.Context, requested types.ConversationID) error {
	client, backend, store, err := newStreamClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	updates, unsubscribe := client.Session().Subscribe()
	defer unsubscribe()

	// Pick up an orphaned server-side stream before anything else.
	reconnected, ok := client.ReconnectActiveStream(ctx)
	if ok {
		fmt.Fprintf(os.Stderr, "reconnected to conversation %s\n", reconnected)
	}

	convID, err := resolveConversation(ctx, requested, reconnected, backend, store)
	if err != nil {
		return err
	}
	client.SetActiveConversation(convID)

	if conv, err := store.Get(ctx, convID); err == nil && len(conv.Messages) > 0 {
		printHistory(conv)
	}

	// Ctrl-C cancels an in-flight stream; when idle it exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if client.Session().Status() == stream.StatusStreaming ||
				client.Session().Status() == stream.StatusConnecting {
				client.CancelStream(convID)
				continue
			}
			cancel()
			return
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		renderLoop(gctx, updates)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return inputLoop(gctx, client, convID)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveConversation decides which conversation this chat session is
// bound to: the explicit argument, the reconnected one, or a fresh one.
func resolveConversation(
	ctx context.Context,
	requested, reconnected types.ConversationID,
	backend types.Backend,
	store types.ConversationStore,
) (types.ConversationID, error) {
	if requested != "" {
		conv, err := backend.GetConversation(ctx, requested)
		if err != nil {
			return "", fmt.Errorf("fetch conversation: %w", err)
		}
		if err := store.Replace(ctx, conv); err != nil {
			return "", err
		}
		return requested, nil
	}
	if reconnected != "" {
		return reconnected, nil
	}

	conv := &types.Conversation{ID: types.NewConversationID()}
	if err := store.Put(ctx, conv); err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "new conversation %s\n", conv.ID)
	return conv.ID, nil
}

func printHistory(conv *types.Conversation) {
	for _, msg := range conv.Messages {
		switch msg.Role {
		case types.RoleUser:
			fmt.Println("> " + render.FinalText(msg.Blocks))
		case types.RoleAssistant:
			if s := render.Blocks(msg.Blocks); s != "" {
				fmt.Println(s)
			}
		}
		fmt.Println()
	}
}

func inputLoop(ctx context.Context, client *stream.Client, convID types.ConversationID) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		client.SendAndStream(ctx, convID, line)
	}
}

// renderLoop paints session updates as they arrive: new text is printed
// incrementally, tool blocks as one-shot headers.
func renderLoop(ctx context.Context, updates <-chan stream.Update) {
	p := newPainter(os.Stdout, os.Stderr)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			p.apply(u)
		}
	}
}

// painter tracks how much of each block has been written so repeated
// snapshots only emit the new tail.
type painter struct {
	out     io.Writer
	errOut  io.Writer
	printed map[int]int
	headers map[int]bool
}

func newPainter(out, errOut io.Writer) *painter {
	return &painter{
		out:     out,
		errOut:  errOut,
		printed: make(map[int]int),
		headers: make(map[int]bool),
	}
}

// apply routes one session update to the terminal. Update delivery is
// lossy, so a fresh attempt resets stale offsets even when the previous
// attempt's terminal update never arrived.
func (p *painter) apply(u stream.Update) {
	switch u.Status {
	case stream.StatusConnecting:
		p.reset()
	case stream.StatusStreaming, stream.StatusReconnecting:
		p.paint(u.Blocks)
	case stream.StatusDone:
		p.paint(u.Blocks)
		fmt.Fprintln(p.out)
		p.reset()
	case stream.StatusError:
		fmt.Fprintf(p.errOut, "\nstream error (%s): %s\n", u.ErrorKind, u.ErrorMessage)
		p.reset()
	case stream.StatusIdle:
		fmt.Fprintln(p.out)
		p.reset()
	}
}

func (p *painter) paint(blocks []types.ContentBlock) {
	for i, b := range blocks {
		switch b.Type {
		case types.BlockTypeText, types.BlockTypeThinking:
			if len(b.Text) < p.printed[i] {
				// Blocks never shrink within an attempt; shorter text means
				// the offsets belong to an attempt whose end we never saw.
				p.reset()
			}
			if len(b.Text) > p.printed[i] {
				fmt.Fprint(p.out, b.Text[p.printed[i]:])
				p.printed[i] = len(b.Text)
			}
		case types.BlockTypeToolUse, types.BlockTypeToolResult:
			if !p.headers[i] {
				fmt.Fprintln(p.out, "\n"+render.Block(b))
				p.headers[i] = true
			}
		}
	}
}

func (p *painter) reset() {
	p.printed = make(map[int]int)
	p.headers = make(map[int]bool)
}
