package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatsync/internal/adapter/repository"
	"chatsync/internal/domain/entity"
	"chatsync/internal/usecase"
	"chatsync/pkg/config"
	"chatsync/pkg/errors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	sessionRepo := repository.NewFileSessionRepository(cfg.SessionFile)
	authUseCase := usecase.NewAuthUseCase(sessionRepo, cfg.JWTSecret)

	user, err := authUseCase.Restore(ctx)
	if err != nil {
		if !errors.Is(err, "NOT_FOUND") {
			log.Fatalf("Failed to restore session: %v", err)
		}
		name := os.Getenv("CHAT_USER_NAME")
		if len(os.Args) > 1 {
			name = os.Args[1]
		}
		user, err = authUseCase.Authenticate(ctx, name)
		if err != nil {
			log.Fatalf("Failed to authenticate: %v", err)
		}
	}
	log.Printf("Session: %s (%s)", user.Name, user.ID)

	session := usecase.NewSession(cfg, user)
	defer session.Close()

	session.Client.OnStatusChange(func(status entity.ConnectionStatus) {
		log.Printf("Connection: %s", status)
	})

	if err := session.Start(ctx); err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.ServerURL, err)
	}

	go repl(session)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down")
}

// repl reads commands from stdin: "/chats" lists chats, "/open <id>" opens
// one, anything else is sent to the active chat.
func repl(session *usecase.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "/chats":
			for _, chat := range session.Chats.Chats() {
				marker := " "
				if chat.ID == session.Chats.ActiveChat() {
					marker = "*"
				}
				fmt.Printf("%s %s  %s (%d unread)\n", marker, chat.ID, chat.Name, chat.UnreadCount)
			}

		case line == "/online":
			for _, u := range session.Chats.OnlineUsers() {
				fmt.Printf("  %s (%s)\n", u.Name, u.ID)
			}

		case strings.HasPrefix(line, "/open "):
			chatID := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := session.Chats.OpenChat(chatID); err != nil {
				fmt.Printf("open: %v\n", err)
				continue
			}
			for _, m := range session.Chats.Messages(chatID) {
				fmt.Printf("  [%s] %s: %s\n", m.Status, m.SenderName, m.Text)
			}

		default:
			if _, err := session.Pipeline.Send(line); err != nil {
				fmt.Printf("send: %v\n", err)
			}
		}
	}
}
