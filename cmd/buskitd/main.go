// Package main runs the buskit demo daemon: a clock service on a loopback
// bus that subscribes callers of /clock/time, fans the time out to them,
// and handles both explicit cancellation and subscribers dropping off the
// bus.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tidwall/sjson"

	"github.com/buskit/buskit/internal/config"
	"github.com/buskit/buskit/internal/logging"
	"github.com/buskit/buskit/internal/subscription"
	"github.com/buskit/buskit/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	logging.Init()
	cfg := config.Load()

	broker := transport.NewBroker()

	svc, err := broker.Connect(cfg.ServiceName)
	if err != nil {
		slog.Error("connecting clock service failed", "error", err)
		return 1
	}
	defer svc.Close()

	catalog := subscription.New(svc, subscription.WithCancelFunc(func(msg *transport.Message) {
		slog.Info("subscription cancelled",
			"token", msg.UniqueToken(),
			"service", msg.SenderServiceName())
	}))
	defer catalog.Close()

	registerClock(svc, catalog)

	if err := startSubscribers(broker, cfg); err != nil {
		slog.Error("starting demo subscribers failed", "error", err)
		return 1
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	var dumpC <-chan time.Time
	if cfg.DumpInterval > 0 {
		dt := time.NewTicker(cfg.DumpInterval)
		defer dt.Stop()
		dumpC = dt.C
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("buskitd running",
		"service", cfg.ServiceName,
		"tick", cfg.TickInterval.String())

	for {
		select {
		case t := <-ticker.C:
			payload, err := sjson.Set("", "time", t.UTC().Format(time.RFC3339))
			if err != nil {
				slog.Error("building tick payload failed", "error", err)
				continue
			}
			if err := catalog.Post("clock", "time", []byte(payload)); err != nil {
				slog.Warn("tick fan-out failed", "error", err)
			}

		case <-dumpC:
			dump, err := catalog.Dump()
			if err != nil {
				slog.Warn("subscription dump failed", "error", err)
				continue
			}
			slog.Debug("subscriptions", "dump", string(dump))

		case <-signals:
			slog.Info("shutting down")
			return 0
		}
	}
}

// registerClock installs the clock service's method handlers.
func registerClock(svc *transport.Conn, catalog *subscription.Catalog) {
	svc.Register("clock", "time", func(msg *transport.Message) {
		subscribed, err := catalog.Process(msg)
		if err != nil {
			slog.Warn("rejecting time request", "error", err)
			reply, _ := sjson.Set("", "returnValue", false)
			_ = svc.Reply(msg, []byte(reply))
			return
		}

		reply, _ := sjson.Set("", "returnValue", true)
		reply, _ = sjson.Set(reply, "subscribed", subscribed)
		reply, _ = sjson.Set(reply, "time", time.Now().UTC().Format(time.RFC3339))
		if err := svc.Reply(msg, []byte(reply)); err != nil {
			slog.Warn("replying to time request failed", "error", err)
		}
	})

	svc.Register("clock", "cancel", func(msg *transport.Message) {
		if err := catalog.HandleCancel(msg); err != nil {
			slog.Warn("rejecting cancel request", "error", err)
		}
	})
}

// startSubscribers connects two demo clients: a long-lived watcher that
// later cancels explicitly, and a transient client that silently drops off
// the bus to exercise the disconnect path.
func startSubscribers(broker *transport.Broker, cfg *config.Config) error {
	watcher, err := broker.Connect("com.buskit.watcher")
	if err != nil {
		return err
	}

	serial, err := watcher.Call(cfg.ServiceName, "clock", "time",
		[]byte(`{"subscribe":true}`), func(msg *transport.Message) {
			slog.Info("watcher tick", "payload", string(msg.Payload()))
		})
	if err != nil {
		return err
	}

	transient, err := broker.Connect("")
	if err != nil {
		return err
	}
	_, err = transient.Call(cfg.ServiceName, "clock", "time",
		[]byte(`{"subscribe":true}`), func(msg *transport.Message) {
			slog.Debug("transient tick", "payload", string(msg.Payload()))
		})
	if err != nil {
		return err
	}

	go func() {
		time.Sleep(5 * cfg.TickInterval)
		slog.Info("transient subscriber disconnecting")
		_ = transient.Close()
	}()

	go func() {
		time.Sleep(10 * cfg.TickInterval)
		slog.Info("watcher cancelling explicitly")
		body := []byte(`{"token": ` + strconv.FormatUint(uint64(serial), 10) + `}`)
		if _, err := watcher.Call(cfg.ServiceName, "clock", "cancel", body, nil); err != nil {
			slog.Warn("cancel call failed", "error", err)
		}
		_ = watcher.CancelCall(serial)
	}()

	return nil
}
