package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-channel/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	channel := flag.String("channel", "general", "channel key")
	user := flag.String("user", "tester", "user id to connect as")
	token := flag.String("token", "", "bearer token when auth is required")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	q := url.Values{}
	q.Set("userId", *user)
	q.Set("username", *user)
	if *token != "" {
		q.Set("token", *token)
	}
	target := fmt.Sprintf("%s/channels/%s/ws?%s", *base, url.PathEscape(*channel), q.Encode())

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSendMessage, Content: *text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s\n", outbound.Type)

		switch outbound.Type {
		case proto.OutboundTypeInit:
			fmt.Printf("Init: %d cached messages\n", len(outbound.Messages))
		case proto.OutboundTypeUserList:
			for _, u := range outbound.Users {
				fmt.Printf("Online: user=%s name=%s\n", u.UserID, u.Username)
			}
		case proto.OutboundTypeError:
			if outbound.Error != nil {
				return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
			}
		case proto.OutboundTypeNewMessage:
			msg := outbound.Message
			if msg == nil || msg.UserID != *user {
				continue
			}
			fmt.Printf("NewMessage: channel=%s user=%s content=%q ts=%s\n", msg.ChannelID, msg.UserID, msg.Content, msg.Timestamp)
			return nil
		default:
			// keep looping for our own message
		}
	}
}
