// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// webmessenger is a command-line probe for a web messaging deployment.
// It fetches the deployment configuration, opens a session against the
// messaging gateway, optionally sends one message, and streams session
// states, conversation changes, and domain events to stdout until
// interrupted.
//
// Typical use:
//
//	webmessenger --deployment <id> --api https://api.example.com \
//	    --gateway wss://webmessaging.example.com/v1 \
//	    --message "hello from the probe"
//
// The session token persists in --token-file so repeated runs resume
// the same conversation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/messenger"
	"github.com/bureau-foundation/webmessenger/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "webmessenger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		deploymentID string
		apiURL       string
		gatewayURL   string
		message      string
		tokenFile    string
		historyPages int
		verbose      bool
	)

	flagSet := pflag.NewFlagSet("webmessenger", pflag.ContinueOnError)
	flagSet.StringVar(&deploymentID, "deployment", "", "messenger deployment ID (required)")
	flagSet.StringVar(&apiURL, "api", "", "gateway API origin, e.g. https://api.example.com (required)")
	flagSet.StringVar(&gatewayURL, "gateway", "", "websocket gateway URL, e.g. wss://webmessaging.example.com/v1 (required)")
	flagSet.StringVar(&message, "message", "", "send this message once the session is configured")
	flagSet.StringVar(&tokenFile, "token-file", "", "persist the session token here to resume the conversation across runs")
	flagSet.IntVar(&historyPages, "history", 0, "fetch this many pages of conversation history after configuring")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if deploymentID == "" || apiURL == "" || gatewayURL == "" {
		return fmt.Errorf("--deployment, --api, and --gateway are required")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient, err := api.NewClient(api.Config{
		BaseURL:      apiURL,
		DeploymentID: deploymentID,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	deployment, err := apiClient.FetchDeploymentConfig(ctx)
	if err != nil {
		return err
	}
	logger.Info("deployment config fetched",
		"enabled", deployment.Messenger.Enabled,
		"autostart", deployment.AutostartEnabled(),
		"typing_indicator", deployment.TypingIndicatorEnabled())

	socket, err := transport.NewWebSocket(transport.WebSocketConfig{
		URL:    gatewayURL + "?deploymentId=" + deploymentID,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var tokenStore messenger.TokenStore
	if tokenFile != "" {
		tokenStore = messenger.NewFileTokenStore(tokenFile)
	}
	client, err := messenger.NewClient(messenger.Config{
		DeploymentID: deploymentID,
		Socket:       socket,
		API:          apiClient,
		Deployment:   deployment,
		TokenStore:   tokenStore,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	configured := make(chan struct{}, 1)
	done := make(chan messenger.State, 1)
	client.SetStateListener(func(change messenger.StateChange) {
		fmt.Printf("state: %s -> %s\n", change.Old.Kind, change.New.Kind)
		switch change.New.Kind {
		case messenger.StateConfigured:
			select {
			case configured <- struct{}{}:
			default:
			}
		case messenger.StateClosed, messenger.StateKindError:
			select {
			case done <- change.New:
			default:
			}
		}
	})
	client.SetMessageListener(func(event messenger.MessageEvent) {
		switch e := event.(type) {
		case messenger.MessageInserted:
			printMessage("+", e.Message)
		case messenger.MessageUpdated:
			printMessage("~", e.Message)
		case messenger.AttachmentUpdated:
			fmt.Printf("attachment %s: %s\n", e.Attachment.ID, e.Attachment.State)
		case messenger.HistoryFetched:
			fmt.Printf("history: %d messages, start=%v\n", len(e.Messages), e.StartOfConversation)
		}
	})
	client.SetEventListener(func(event messenger.Event) {
		fmt.Printf("event: %#v\n", event)
	})

	logger.Info("connecting", "token", client.Token())
	if err := client.Connect(); err != nil {
		return err
	}

	select {
	case <-configured:
	case state := <-done:
		return fmt.Errorf("session ended before configuring: %s %s", state.Kind, state.ErrorMessage)
	case <-ctx.Done():
		return client.Disconnect()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for the session to configure")
	}

	for page := 0; page < historyPages; page++ {
		if err := client.FetchNextPage(ctx); err != nil {
			logger.Warn("history fetch failed", "error", err)
			break
		}
	}
	if message != "" {
		if err := client.SendMessage(message, nil); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("interrupted, disconnecting")
		if err := client.Disconnect(); err != nil {
			return err
		}
		// Give the close handshake a moment before exiting.
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
		return nil
	case state := <-done:
		if state.Kind == messenger.StateKindError {
			return fmt.Errorf("session failed: %d %s", int(state.ErrorCode), state.ErrorMessage)
		}
		return nil
	}
}

func printMessage(marker string, message messenger.Message) {
	from := message.From.Name
	if from == "" {
		from = message.Direction.String()
	}
	fmt.Printf("%s [%s] %s: %q\n", marker, message.State, from, message.Text)
}
