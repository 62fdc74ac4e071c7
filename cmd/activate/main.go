package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"keyactivate/pkg/client"
)

func main() {
	var (
		server = flag.String("server", "http://localhost:3000", "Activation server URL")
		key    = flag.String("key", "", "Hardware key (defaults to the host name)")
	)
	flag.Parse()

	if *key == "" {
		hostname, _ := os.Hostname()
		*key = hostname
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.New(*server).Activate(ctx, *key)
	if err != nil {
		log.Fatal(err)
	}
	if resp.TotalUsers == nil {
		fmt.Println(resp.Message)
		return
	}
	fmt.Printf("%s (total users: %d)\n", resp.Message, *resp.TotalUsers)
}
