package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatsync/internal/app"
	"github.com/mbeoliero/chatsync/internal/config"
	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/internal/syncer"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file path")
		userId     = flag.String("user", "", "user id")
		password   = flag.String("password", "", "password")
	)
	flag.Parse()

	ctx := context.TODO()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxWarn(ctx, "config load failed, using defaults: %v", err)
		cfg = config.Default()
	}

	if *userId == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chatsync -user <id> -password <pw> [-config config.yaml]")
		os.Exit(2)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to build runtime: %v", err)
		panic(err)
	}
	defer a.Close()

	if err := a.Login(ctx, *userId, *password); err != nil {
		log.CtxError(ctx, "login failed: user_id=%s, error=%v", *userId, err)
		panic(err)
	}
	log.CtxInfo(ctx, "logged in: user_id=%s", *userId)

	sub := a.Start(syncer.Callbacks{
		OnConversations: printConversations,
		OnMessages: func(conversationId string, msgs []*entity.Message) {
			if len(msgs) == 0 {
				return
			}
			last := msgs[len(msgs)-1]
			fmt.Printf("[%s] %s: %s\n", conversationId, last.SenderName, last.Text)
		},
		OnPresence: func(userId string, isOnline bool) {
			state := "offline"
			if isOnline {
				state = "online"
			}
			fmt.Printf("* %s is %s\n", userId, state)
		},
		OnNotification: func(intent syncer.NotificationIntent) {
			if !intent.ShouldShowSystemNotification {
				return
			}
			bell := ""
			if intent.ShouldPlaySound {
				bell = " \a"
			}
			fmt.Printf("!! %s: %s%s\n", intent.Title, intent.Body, bell)
		},
	})
	defer sub.Cancel()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down...")
}

func printConversations(convs []*entity.Conversation) {
	fmt.Println("--- conversations ---")
	for _, conv := range convs {
		marker := "  "
		if conv.IsFavorite {
			marker = "* "
		}
		badge := ""
		if conv.UnreadCount > 0 {
			badge = fmt.Sprintf(" (%d)", conv.UnreadCount)
		}
		if conv.PendingMention {
			badge += " @"
		}
		fmt.Printf("%s%s%s  %s\n", marker, conv.ConversationId, badge, conv.LastMessage.Text)
	}
}
