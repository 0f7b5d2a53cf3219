package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/akovalev/netchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:7667", "server address")
	user := flag.String("user", "tester", "username to log in with")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(*timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	expect := func(kind proto.Kind) (*proto.Envelope, error) {
		for {
			env, err := proto.Read(conn)
			if err != nil {
				return nil, fmt.Errorf("read: %w", err)
			}
			if env.Kind == proto.KindError || env.Kind == proto.KindLoginFailure {
				return nil, fmt.Errorf("server rejected: %s", env.Content)
			}
			if env.Kind == kind {
				return env, nil
			}
		}
	}

	if err := proto.Write(conn, &proto.Envelope{Kind: proto.KindLogin, Sender: *user}); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	if _, err := expect(proto.KindLoginSuccess); err != nil {
		return err
	}
	log.Printf("logged in as %s", *user)

	if err := proto.Write(conn, &proto.Envelope{Kind: proto.KindJoinRoom, Room: *room}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	if _, err := expect(proto.KindSuccess); err != nil {
		return err
	}
	log.Printf("joined %s", *room)

	if err := proto.Write(conn, &proto.Envelope{Kind: proto.KindBroadcast, Content: *text}); err != nil {
		return fmt.Errorf("send broadcast: %w", err)
	}
	if _, err := expect(proto.KindSuccess); err != nil {
		return err
	}
	log.Printf("broadcast sent")

	if err := proto.Write(conn, &proto.Envelope{Kind: proto.KindDisconnect}); err != nil {
		return fmt.Errorf("send disconnect: %w", err)
	}
	if _, err := expect(proto.KindSuccess); err != nil {
		return err
	}
	log.Printf("disconnected cleanly")
	return nil
}
