package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/brain"
	"github.com/sr-robotics/srcore/canbus"
	"github.com/sr-robotics/srcore/devreg"
	"github.com/sr-robotics/srcore/intent"
	"github.com/sr-robotics/srcore/safety"
	"github.com/sr-robotics/srcore/srlog"
)

var ENV *EnvConfig

func init() {
	ENV = new(EnvConfig)
	must(env.Parse(ENV), "parsing environment")
	JWT_HMAC_SECRET = []byte(ENV.JWTSecret)
}

func main() {
	noShell := flag.Bool("no-shell", false, "Disable the interactive shell")
	addr := flag.String("addr", "", "Override the listen address")
	flag.Parse()
	if *addr != "" {
		ENV.Addr = *addr
	}

	logger := buildLogger(ENV.Debug)
	defer logger.Sync()
	ENV.Logger = logger

	db, err := openUserDb(ENV.DataDir)
	must(err, "opening user db")
	ENV.DB = db

	audit, err := safety.OpenAuditLog(filepath.Join(ENV.DataDir, "audit.db"))
	must(err, "opening audit log")
	ENV.Audit = audit

	bus, err := openBus(ENV)
	must(err, "opening CAN bus")
	ENV.Bus = bus

	defer ENV.Close()

	reg, err := devreg.LoadDescriptorsDir(ENV.DescriptorDir)
	must(err, "loading descriptors")
	ENV.Reg = reg

	metrics, err := devreg.NewMetricsHub()
	must(err, "building metrics")
	ENV.Metrics = metrics
	metrics.DevicesLoaded.Set(float64(len(reg.IDs())))

	engine, err := safety.DefaultEngine(logger)
	must(err, "building constraint engine")
	ENV.Engine = engine

	ENV.EStop = &safety.EStopFlag{}
	canWD := safety.NewCanWatchdog("can_bus", 500*time.Millisecond)
	dogs := safety.NewManager(func(ev safety.SafetyEvent) {
		logger.Warn("watchdog event",
			zap.String("type", string(ev.EventType)),
			zap.String("message", ev.Message))
		if err := audit.Append(ev); err != nil {
			logger.Error("audit append failed", zap.Error(err))
		}
	}, logger)
	must(dogs.Register(canWD), "registering can watchdog")
	must(dogs.Register(safety.NewEStopWatchdog("estop", ENV.EStop)), "registering estop watchdog")
	ENV.Dogs = dogs

	parser, err := intent.NewParser(parserConfig(ENV))
	must(err, "building parser")

	b, err := brain.New(brain.Config{
		Bus:      bus,
		Registry: reg,
		DeviceID: ENV.DeviceID,
		Engine:   engine,
		Parser:   parser,
		CanWD:    canWD,
		Metrics:  metrics,
		Audit:    audit,
		Logger:   logger,
	})
	must(err, "building brain")
	ENV.Brain = b

	// Periodic watchdog sweep; events fan out through the manager callback.
	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for range tick.C {
			dogs.CheckAll()
		}
	}()

	if !*noShell {
		go runShell()
	}

	logger.Info("listening",
		zap.String("addr", ENV.Addr),
		zap.String("backend", ENV.Backend),
		zap.String("device", ENV.DeviceID))
	if err := http.ListenAndServe(ENV.Addr, NewRouter()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

// runShell hosts the local operator shell.
func runShell() {
	shell := ishell.New()
	shell.Println("srcore operator shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "list",
		Help: "list buses and registered devices",
		Func: func(c *ishell.Context) {
			infos, err := canbus.List(canbus.Backend(ENV.Backend))
			if err != nil {
				c.Err(err)
			}
			for _, info := range infos {
				c.Printf("bus %s (%s)\n", info.Name, info.Driver)
			}
			for _, id := range ENV.Reg.IDs() {
				c.Printf("device %s\n", id)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <id> <hex bytes>  e.g. send 0x141 DE AD BE EF or send 0x141 DEADBEEF",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: send <id> <hex bytes>"))
				return
			}
			id, err := canbus.ParseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := canbus.ParseHexBytes(c.Args[1:])
			if err != nil {
				data, err = canbus.ParseHexCompact(c.Args[1])
			}
			if err != nil {
				c.Err(err)
				return
			}
			frame, err := canbus.NewFrame(id, data)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ENV.Bus.Send(frame); err != nil {
				c.Err(err)
				return
			}
			ENV.Metrics.TxFrames.Inc()
			c.Printf("sent %s [%d] %X\n", frame.ID, frame.Len, frame.Payload())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sniff",
		Help: "sniff [n]  print the next n frames (default 10)",
		Func: func(c *ishell.Context) {
			n := 10
			if len(c.Args) >= 1 {
				fmt.Sscanf(c.Args[0], "%d", &n)
			}
			for i := 0; i < n; i++ {
				rec, err := ENV.Brain.PumpTelemetry(time.Second)
				if err != nil {
					c.Err(err)
					return
				}
				if rec == nil {
					continue
				}
				c.Printf("%s %s %v\n", rec.ID, rec.Fmt, rec.Fields)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "capture",
		Help: "capture <file> <n>  journal the next n frames",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: capture <file> <n>"))
				return
			}
			n := 0
			fmt.Sscanf(c.Args[1], "%d", &n)

			f, err := os.Create(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()

			w, err := srlog.NewWriter(f, srlog.Header{
				Backend: ENV.Backend,
				Device:  ENV.Interface,
				Bitrate: ENV.Bitrate,
			})
			if err != nil {
				c.Err(err)
				return
			}
			count, err := srlog.Capture(ENV.Bus, w, n, time.Second, ENV.Logger)
			if err != nil {
				c.Err(err)
			}
			c.Printf("captured %d frames to %s\n", count, c.Args[0])
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "replay",
		Help: "replay <file> [realtime]  resend a journal onto the bus",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: replay <file> [realtime]"))
				return
			}
			realtime := len(c.Args) >= 2 && c.Args[1] == "realtime"

			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()

			r, err := srlog.NewReader(f)
			if err != nil {
				c.Err(err)
				return
			}
			count, err := srlog.Replay(r, ENV.Bus, realtime, ENV.Logger)
			if err != nil {
				c.Err(err)
			}
			c.Printf("replayed %d frames\n", count)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "parse",
		Help: "parse <text>  dry-run the intent parser",
		Func: func(c *ishell.Context) {
			parser, err := intent.NewParser(parserConfig(ENV))
			if err != nil {
				c.Err(err)
				return
			}
			result, err := parser.Parse(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s (confidence %.2f)\n", result.Action.Kind, result.Confidence)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "say",
		Help: "say <text>  run a command through the full pipeline",
		Func: func(c *ishell.Context) {
			out, err := ENV.Brain.HandleUtterance(
				context.Background(), strings.Join(c.Args, " "), currentObservation())
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s gate=%s frames=%d\n",
				out.Parsed.Action.Kind, out.Gate.Status, out.FramesSent)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "estop",
		Help: "latch the software emergency stop",
		Func: func(c *ishell.Context) {
			ENV.EStop.Press()
			c.Println("emergency stop latched")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "clear the e-stop latch and reset all watchdogs",
		Func: func(c *ishell.Context) {
			ENV.Dogs.ResetAll()
			c.Println("watchdogs reset")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "watchdogs",
		Help: "show watchdog health",
		Func: func(c *ishell.Context) {
			for _, status := range ENV.Dogs.CheckAll() {
				state := "ok"
				if !status.Healthy {
					state = "FAILED: " + status.LastError
				}
				c.Printf("%-12s %s\n", status.Name, state)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			c.ShowPrompt(false)
			defer c.ShowPrompt(true)

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			user := &User{
				Email: email,
				Name:  email,
				Admin: true,
			}
			user.SetPassword([]byte(password))
			if err := ENV.DB.Save(user); err != nil {
				c.Err(err)
				return
			}
			c.Println("Superuser created")
		},
	})

	shell.Run()
}
