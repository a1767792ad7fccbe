// Command displaytail connects to the assistant's display socket and prints
// every notification it receives. It stands in for the mirror UI when testing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

type options struct {
	addr      string
	token     string
	pingEvery time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &options{}
	cmd := &cobra.Command{
		Use:   "displaytail",
		Short: "Print display notifications from a running assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := observability.NewLogger("info", true)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return tail(cmd.Context(), opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:8080", "assistant host:port")
	cmd.Flags().StringVar(&opts.token, "token", "", "display token, see `mirrorvoice token`")
	cmd.Flags().DurationVar(&opts.pingEvery, "ping", 30*time.Second, "keepalive ping interval")

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func tail(ctx context.Context, opts *options, logger *zap.Logger) error {
	wsURL := url.URL{Scheme: "ws", Host: opts.addr, Path: "/ws"}
	if opts.token != "" {
		q := wsURL.Query()
		q.Set("token", opts.token)
		wsURL.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()
	logger.Info("Connected", zap.String("url", wsURL.Redacted()))

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	go ping(ctx, conn, opts.pingEvery, logger)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		printMessage(raw, logger)
	}
}

func ping(ctx context.Context, conn *websocket.Conn, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := map[string]string{"type": "ping", "timestamp": time.Now().Format(time.RFC3339)}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func printMessage(raw []byte, logger *zap.Logger) {
	var n struct {
		Type    domain.NotificationType `json:"type"`
		Payload json.RawMessage         `json:"payload"`
	}
	if err := json.Unmarshal(raw, &n); err != nil || n.Type == "" {
		logger.Debug("Non-notification message", zap.ByteString("raw", raw))
		return
	}
	if n.Type == "pong" {
		return
	}
	fmt.Printf("%-18s %s\n", n.Type, n.Payload)
}
