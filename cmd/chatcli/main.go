package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/webinar-edge/pkg/logger"
	"github.com/cwrk-planet/webinar-edge/pkg/realtime"
)

func main() {
	var (
		room     = flag.String("room", "", "room id")
		email    = flag.String("email", "", "user identifier (phone/email)")
		name     = flag.String("name", "guest", "display name")
		api      = flag.String("api", "http://localhost:8081", "chat api base url")
		rt       = flag.String("realtime", "ws://localhost:8000/connection/websocket", "pub-sub url")
		token    = flag.String("token", "", "bearer token (optional)")
		withHist = flag.Bool("history", true, "print chat history on join")
	)
	flag.Parse()

	if *room == "" || *email == "" {
		log.Fatal("usage: chatcli -room <id> -email <identifier> [-name <display name>]")
	}

	logger.Init(logger.Config{Service: "chatcli"})

	m := realtime.New(realtime.Config{
		RoomID:         *room,
		UserIdentifier: *email,
		UserName:       *name,
		ChatAPIURL:     *api,
		RealtimeURL:    *rt,
		Token:          *token,
		OnMessage: func(msg realtime.ChatMessage) {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.Username, msg.Message)
		},
		OnEvent: func(ev realtime.Event) {
			fmt.Printf("* event %s %v\n", ev.Type, ev.Data)
		},
		OnStatusChange: func(s realtime.Status, err error) {
			if err != nil {
				slog.Warn("status", "status", s, "err", err)
				return
			}
			slog.Info("status", "status", s)
		},
	})
	defer m.Destroy()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m.Connect(ctx)

	if *withHist {
		history, err := m.ChatHistory(ctx)
		if err != nil {
			slog.Warn("chat history failed", "err", err)
		}
		for _, msg := range history {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.Username, msg.Message)
		}
	}

	// stdin → sendMessage; эхо придёт отдельной публикацией
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if _, err := m.SendMessage(ctx, sc.Text()); err != nil {
				if errors.Is(err, realtime.ErrEmptyMessage) {
					continue
				}
				slog.Warn("send failed", "err", err)
			}
		}
		stop()
	}()

	<-ctx.Done()
}
