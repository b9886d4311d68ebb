package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/federation"
	"github.com/deemkeen/worknet/util"
	"github.com/deemkeen/worknet/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	// Opening the database runs the schema migrations.
	log.Println("Initializing database...")
	db.GetDB()

	// The server-wide signing key must exist before anything federates.
	if err, _ := federation.EnsureServerKey(); err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	federation.StartDeliveryWorkers(ctx, conf)
	federation.StartCleanupScheduler(ctx, conf)

	go func() {
		if err := web.Router(conf); err != nil {
			log.Fatalln(err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Stopping federation engine")
	cancel()
}
