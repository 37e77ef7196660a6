package main

import (
	"flag"
	"fmt"
	"os"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/store"
)

// Debug tool: dump the conversations in a database directory and their
// message counts.
func main() {
	var path string
	var user string
	flag.StringVar(&path, "db", "", "pebble database path")
	flag.StringVar(&user, "user", "", "filter chats by participant id")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()
	if err := store.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	chats, err := store.ListConversations(user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list chats: %v\n", err)
		os.Exit(1)
	}
	for _, c := range chats {
		msgs, err := store.ListMessages(c.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat %s: %v\n", c.ID, err)
			continue
		}
		unread := 0
		for _, m := range msgs {
			if !m.IsRead {
				unread++
			}
		}
		fmt.Printf("%s  %s <-> %s  messages=%d unread=%d ad=%s\n",
			c.ID, c.UserA, c.UserB, len(msgs), unread, c.AdID)
	}
	fmt.Printf("%d chats\n", len(chats))
}
