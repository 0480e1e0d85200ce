// cmd/server is the main entrypoint for a ring node.
//
// Usage — bootstrap a new ring, prompting for consistency and k:
//
//	./server 127.0.0.1 8080
//
// Usage — join an existing ring through a known member:
//
//	./server 127.0.0.1 8081 127.0.0.1 8080
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"distributed-kvstore/internal/api"
	"distributed-kvstore/internal/chordhash"
	"distributed-kvstore/internal/ring"
	"distributed-kvstore/internal/wire"
)

func main() {
	if len(os.Args) != 3 && len(os.Args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: server <ip> <port> [bootstrap_ip] [bootstrap_port]")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ip, port := os.Args[1], os.Args[2]
	self := wire.Descriptor{IP: ip, Port: port, ID: chordhash.Hash(ip + ":" + port)}

	var node *ring.Node
	if len(os.Args) == 3 {
		consistency, k := promptConfig()
		node = ring.New(self, ring.Config{Consistency: consistency, KFactor: k, Logger: logger})
		logger.Info("bootstrapped new ring", zap.Uint16("id", self.ID), zap.String("consistency", string(consistency)), zap.Int("k", k))
	} else {
		bootstrap := wire.Descriptor{IP: os.Args[3], Port: os.Args[4]}
		bootstrap.ID = chordhash.Hash(bootstrap.Addr())
		node = ring.New(self, ring.Config{Logger: logger})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := node.PerformJoin(ctx, bootstrap); err != nil {
			cancel()
			logger.Fatal("join failed", zap.Error(err))
		}
		cancel()
		logger.Info("joined ring", zap.Uint16("id", self.ID), zap.String("bootstrap", bootstrap.Addr()))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(logger), api.Recovery(logger))

	handler := api.NewHandler(node, logger)
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": self.ID, "status": "ok"})
	})

	srv := &http.Server{
		Addr:         self.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", self.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	healCtx, stopHeal := context.WithCancel(context.Background())
	go node.RunSelfHealing(healCtx, 30*time.Second)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down", zap.Uint16("id", self.ID))
	stopHeal()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
}

// promptConfig asks the operator for a consistency mode and replication
// factor, falling back to linearizability/k=4 on EOF (non-interactive
// startup), matching the original CLI's behavior.
func promptConfig() (ring.Consistency, int) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Consistency (linearizability(l) or eventual(e)): ")
		if !scanner.Scan() {
			fmt.Println("\nNon-interactive mode detected: setting default values.")
			return ring.Linearizability, 4
		}
		mode := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if mode != "l" && mode != "e" {
			fmt.Println("Invalid consistency type. Please choose 'linearizability' or 'eventual'.")
			continue
		}

		k, eof := promptKFactor(scanner)
		if eof {
			fmt.Println("\nNon-interactive mode detected: setting default values.")
			return ring.Linearizability, 4
		}
		if k == 0 {
			continue
		}
		if mode == "l" {
			return ring.Linearizability, k
		}
		return ring.Eventual, k
	}
}

// promptKFactor reads the k-factor line. eof=true means stdin closed
// (non-interactive startup); k=0 with eof=false means invalid input that
// should reprompt from the top.
func promptKFactor(scanner *bufio.Scanner) (k int, eof bool) {
	fmt.Print("Kfactor: ")
	if !scanner.Scan() {
		return 0, true
	}
	v, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || v < 1 || v > 10 {
		fmt.Println("Invalid kfactor. Please enter a positive integer between 1 and 10.")
		return 0, false
	}
	return v, false
}
