// Command bus-handshake runs both sides of the bus authentication handshake
// in one process and reports the outcome.
//
// The client and server are connected through an in-memory pipe or a unix
// socket pair. With -message, the client then sends a value to the server
// over the authenticated stream.
//
// Usage:
//
//	bus-handshake [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-socket string        Socket kind: pipe, socketpair (overrides the config file)
//	-message string       Send this text from client to server after authenticating
//	-timeout duration     Overall timeout (default 5s)
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Authenticate over a unix socket pair and log the exchange
//	bus-handshake -socket socketpair -protocol-log handshake.blog
//
//	# Inspect the log afterwards
//	bus-log view --layer auth handshake.blog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	buslog "github.com/mash-protocol/busgo/pkg/log"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	socketKind  = flag.String("socket", "", "Socket kind: pipe, socketpair (overrides the config file)")
	message     = flag.String("message", "", "Send this text from client to server after authenticating")
	timeout     = flag.Duration("timeout", 5*time.Second, "Overall timeout")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	logger, err := setupLogging(*logLevel)
	if err != nil {
		fail(err)
	}

	cfg := DefaultConfig()
	if *configFile != "" {
		if cfg, err = LoadConfig(*configFile); err != nil {
			fail(err)
		}
	}
	if *socketKind != "" {
		cfg.Socket = *socketKind
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	sinks := []buslog.Logger{buslog.NewSlogAdapter(logger)}
	var fileLogger *buslog.FileLogger
	if *protocolLog != "" {
		fileLogger, err = buslog.NewFileLogger(*protocolLog)
		if err != nil {
			fail(fmt.Errorf("failed to create protocol logger: %w", err))
		}
		logger.Info("Protocol logging enabled", "path", fileLogger.Path())
		sinks = append(sinks, fileLogger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	s := &session{
		cfg:            cfg,
		logger:         logger,
		protocolLogger: buslog.NewMultiLogger(sinks...),
		out:            os.Stdout,
	}
	err = s.run(ctx, *message)
	if fileLogger != nil {
		fileLogger.Close()
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// setupLogging returns the operational logger for level.
func setupLogging(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
