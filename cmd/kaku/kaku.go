package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jaspreeeet/kaku/internal/api"
	"github.com/jaspreeeet/kaku/internal/config"
	"github.com/jaspreeeet/kaku/internal/db"
	"github.com/jaspreeeet/kaku/internal/gesture"
	"github.com/jaspreeeet/kaku/internal/httputil"
	"github.com/jaspreeeet/kaku/internal/imu"
	"github.com/jaspreeeet/kaku/internal/pet"
	"github.com/jaspreeeet/kaku/internal/render"
	"github.com/jaspreeeet/kaku/internal/sensorbus"
	signalloop "github.com/jaspreeeet/kaku/internal/signal"
	"github.com/jaspreeeet/kaku/internal/statesync"
	"github.com/jaspreeeet/kaku/internal/timeutil"
	"github.com/jaspreeeet/kaku/internal/version"
	"github.com/jaspreeeet/kaku/internal/vision"
)

var (
	devMode      = flag.Bool("dev", false, "Run in dev mode (mock IMU, in-memory display)")
	listen       = flag.String("listen", ":8033", "HTTP listen address")
	imuPort      = flag.String("imu-port", "/dev/ttyUSB0", "IMU serial port (ignored in dev mode)")
	cameraListen = flag.String("camera-listen", ":8989", "UDP listen address for camera frames ('' disables)")
	dbFile       = flag.String("db", "kaku.db", "Path to the SQLite database")
	configPath   = flag.String("config", "", "Path to a JSON tuning config")
	backendURL   = flag.String("backend", "", "Companion backend base URL ('' disables sync)")
	classifyURL  = flag.String("classifier", "", "Frame classifier base URL ('' accepts feeds on gesture alone)")
	deviceID     = flag.String("device-id", "", "Device identifier reported to the backend (default: hostname)")
)

// Display panel dimensions, fixed by the hardware.
const screenW, screenH = 128, 64

func main() {
	flag.Parse()

	log.Printf("kaku %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !*devMode && *imuPort == "" {
		log.Fatal("IMU serial port is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		cfg = loaded
		log.Printf("loaded tuning config from %s", *configPath)
	}

	var bus sensorbus.Buser
	if *devMode {
		// a gentle at-rest reading keeps the recognizer quiet in dev
		line := imu.FormatLine(imu.MotionSample{AzG: 1.0})
		bus = sensorbus.NewMockBus([]byte(line+"\n"), cfg.GetSampleInterval())
	} else {
		real, err := sensorbus.NewRealBus(*imuPort, sensorbus.PortOptions{})
		if err != nil {
			log.Fatalf("failed to open IMU port: %v", err)
		}
		bus = real
	}
	defer bus.Close()

	if err := bus.Initialize(); err != nil {
		log.Fatalf("failed to initialize IMU: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	clock := timeutil.RealClock{}
	machine := pet.NewMachine(clock, cfg.PetParams())
	if state, ok, err := database.LoadPetState(context.Background()); err != nil {
		log.Fatalf("failed to load pet state: %v", err)
	} else if ok {
		machine.LoadState(state)
		log.Printf("restored %s pet, health %d", state.Stage, state.HealthScore)
	} else {
		log.Print("no saved pet, starting a newborn")
	}

	var camera *vision.Listener
	if *cameraListen != "" {
		camera = vision.NewListener(vision.ListenerConfig{Address: *cameraListen})
	}

	recognizer := gesture.NewRecognizer(cfg.GestureConfig())
	sampler := signalloop.NewSampler(signalloop.Config{
		Bus:              bus,
		Frames:           frameStatsSource(camera),
		Recognizer:       recognizer,
		Applier:          machine,
		Events:           database,
		Interval:         cfg.GetSampleInterval(),
		MotionStaleAfter: cfg.GetMotionStaleAfter(),
		CameraStaleAfter: cfg.GetCameraStaleAfter(),
	})

	engine := pet.NewEngine(machine, database, clock)

	display := render.NewMemDisplay(screenW, screenH)
	renderer := render.NewRenderer(render.Config{
		Display:       display,
		Source:        machine,
		FrameInterval: cfg.GetFrameInterval(),
		StartupHold:   cfg.GetStartupHold(),
	})

	syncCfg := statesync.Config{
		Machine:      machine,
		Frames:       frameSource(camera),
		SyncInterval: cfg.GetSyncInterval(),
	}
	if *backendURL != "" {
		id := *deviceID
		if id == "" {
			host, err := os.Hostname()
			if err != nil {
				log.Fatalf("failed to resolve hostname for device id: %v", err)
			}
			id = host
		}
		syncCfg.Backend = statesync.NewHTTPBackend(*backendURL, id, httputil.NewStandardClient(10*time.Second))
		log.Printf("syncing to %s as %s", *backendURL, id)
	}
	if *classifyURL != "" {
		syncCfg.Classifier = statesync.NewHTTPClassifier(*classifyURL, httputil.NewStandardClient(10*time.Second))
	}
	adapter := statesync.NewAdapter(syncCfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the IMU serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bus.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor IMU port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if camera != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := camera.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("camera listener failed: %v", err)
			}
			log.Print("camera routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sampler.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("sampling loop failed: %v", err)
		}
		log.Print("sampler routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("task engine failed: %v", err)
		}
		log.Print("task engine routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := renderer.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("render loop failed: %v", err)
		}
		log.Print("render routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := adapter.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("sync adapter failed: %v", err)
		}
		log.Print("sync routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(api.Config{
			Machine:  machine,
			DB:       database,
			Renderer: renderer,
			Sampler:  sampler,
			Sync:     adapter,
		}).ServeMux()

		bus.AttachAdminRoutes(mux)
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// frameStatsSource avoids handing the sampler a typed nil when the
// camera is disabled.
func frameStatsSource(l *vision.Listener) signalloop.FrameSource {
	if l == nil {
		return nil
	}
	return l
}

func frameSource(l *vision.Listener) statesync.FrameSource {
	if l == nil {
		return nil
	}
	return l
}
