package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewandler/actorbus/core/envelope"
	"github.com/codewandler/actorbus/core/proxy"
)

var errMemoryDriver = errors.New("the memory driver only works inside serve")

type askFlags struct {
	timeout   time.Duration
	directory bool
}

func newAskCmd(c *cli) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask <actor-urn> <message-type> [json-contents]",
		Short: "Send a request to an actor and print its response",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromArgs(args)
			if err != nil {
				return err
			}
			return c.ask(cmd.Context(), cmd.OutOrStdout(), req, f)
		},
	}
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "response timeout, defaults to ask_timeout of the config")
	cmd.Flags().BoolVar(&f.directory, "directory", false, "fail fast if the actor is not in the directory")
	return cmd
}

func newTellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tell <actor-urn> <message-type> [json-contents]",
		Short: "Send a request without waiting for a response",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromArgs(args)
			if err != nil {
				return err
			}
			client, closeClient, err := c.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeClient()
			if err := client.Publish(cmd.Context(), req); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), req.MessageID)
			return err
		},
	}
}

// requestFromArgs builds a request from urn, type and optional JSON object.
func requestFromArgs(args []string) (envelope.Request, error) {
	contents := json.RawMessage(`{}`)
	if len(args) == 3 {
		contents = json.RawMessage(args[2])
	}
	req := envelope.Request{
		MessageID:   envelope.NewMessageID(args[0]),
		MessageType: args[1],
		ActorURN:    args[0],
		Contents:    contents,
	}
	// Round-trip through the codec so malformed input is rejected locally.
	data, err := req.Encode()
	if err != nil {
		return envelope.Request{}, fmt.Errorf("contents: %w", err)
	}
	return envelope.DecodeRequest(data)
}

func (c *cli) ask(ctx context.Context, out io.Writer, req envelope.Request, f askFlags) error {
	client, closeClient, err := c.newClient(ctx, f.directory)
	if err != nil {
		return err
	}
	defer closeClient()

	resp, err := client.AskRaw(ctx, req, f.timeout)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func (c *cli) newClient(ctx context.Context, withDirectory bool) (*proxy.Client, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.Bus.Driver == "memory" {
		return nil, nil, errMemoryDriver
	}
	connect, err := busConnector(c.cfg, c.log)
	if err != nil {
		return nil, nil, err
	}

	opts := proxy.ClientOptions{
		Config:  c.cfg,
		Connect: connect,
		Log:     c.log,
	}
	closeStore := func() {}
	if withDirectory {
		store, err := directoryStore(ctx, c.cfg)
		if err != nil {
			return nil, nil, err
		}
		if closer, ok := store.(interface{ Close() }); ok {
			closeStore = closer.Close
		}
		opts.Directory = proxy.NewDirectory(proxy.DirectoryOptions{Store: store, Log: c.log})
	}

	client, err := proxy.NewClient(ctx, opts)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		closeStore()
	}, nil
}
