package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voxelstream/internal/config"
	"voxelstream/internal/stream"
	"voxelstream/internal/terrain"
)

func main() {
	var cfgPath string
	var orbitRadius float64
	var orbitSpeed float64
	flag.StringVar(&cfgPath, "config", "", "path to streaming engine configuration file")
	flag.Float64Var(&orbitRadius, "orbit-radius", 96, "radius of the scripted observer orbit, in blocks")
	flag.Float64Var(&orbitSpeed, "orbit-speed", 0.1, "angular speed of the scripted observer, radians per second")
	flag.Parse()

	if _, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("apply environment config: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	gen, err := terrain.NewGenerator(cfg.Terrain)
	if err != nil {
		log.Fatalf("initialise terrain generator: %v", err)
	}

	logger := log.New(log.Writer(), cfg.Server.ID+" ", log.LstdFlags|log.Lmicroseconds)
	ctrl, err := stream.NewController(cfg, gen, &logSink{logger: logger})
	if err != nil {
		log.Fatalf("initialise streaming controller: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	observer := &orbitObserver{
		start:  time.Now(),
		radius: orbitRadius,
		speed:  orbitSpeed,
	}

	logger.Printf("streaming started: %s", cfg.Server.Description)
	if err := ctrl.Run(ctx, observer); err != nil && ctx.Err() == nil {
		log.Fatalf("controller exited with error: %v", err)
	}
}

// orbitObserver stands in for the camera collaborator: it circles the world
// origin so the daemon continuously exercises activation, caching and
// eviction.
type orbitObserver struct {
	start  time.Time
	radius float64
	speed  float64
}

func (o *orbitObserver) Position() (x, y, z float64) {
	angle := time.Since(o.start).Seconds() * o.speed
	return o.radius * math.Cos(angle), 0, o.radius * math.Sin(angle)
}

// logSink reports emissions and retractions instead of uploading geometry;
// the real rendering pipeline lives outside this process.
type logSink struct {
	logger *log.Logger
}

func (s *logSink) Emit(obj stream.RenderObject) {
	s.logger.Printf("emit %s region %v material %s faces %d",
		obj.Handle, obj.Coord, obj.Batch.Material, obj.Batch.FaceCount())
}

func (s *logSink) Retract(handle uuid.UUID) {
	s.logger.Printf("retract %s", handle)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
