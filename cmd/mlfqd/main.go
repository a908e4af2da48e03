// Command mlfqd runs the MLFQ scheduler manager against a simulated
// preemptive fixed-priority kernel, exposing Prometheus metrics, a live
// WebSocket transition feed, and an HTTP control surface for
// registration and promotion. Configuration follows the teacher
// lineage's main.go: plain os.Getenv reads with sane defaults, no CLI
// framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/audit"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/fleet"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/mlfq"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/observability"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/safety"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/workloads"
)

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickInterval := time.Duration(envInt("TICK_INTERVAL_US", 1000)) * time.Microsecond
	sim := platform.NewSim(tickInterval)
	defer sim.Close()

	cfg := mlfq.DefaultConfig()
	cfg.Capacity = envInt("MAX_TASKS", cfg.Capacity)

	var sched *mlfq.Scheduler
	metrics := observability.NewMetrics(func() map[mlfq.Level]int { return sched.OccupancyByLevel() })

	hub := observability.NewDashboardHub()
	go hub.Run(ctx)

	observers := []mlfq.Observer{metrics, hub}

	if dsn := os.Getenv("AUDIT_DATABASE_URL"); dsn != "" {
		sink, err := audit.NewSink(ctx, dsn, envInt("AUDIT_QUEUE_LEN", 256))
		if err != nil {
			log.Printf("⚠️ audit sink unavailable, continuing without durable audit: %v", err)
		} else {
			defer sink.Close()
			observers = append(observers, sink)
			log.Println("✅ audit sink connected")
		}
	}

	var err error
	sched, err = mlfq.New(sim, cfg, mlfq.NewMultiObserver(observers...))
	if err != nil {
		log.Fatalf("failed to initialize scheduler: %v", err)
	}

	if err := sched.StartManager(ctx); err != nil {
		log.Fatalf("failed to start scheduler manager: %v", err)
	}
	log.Println("scheduler manager started")

	guard := safety.NewPromoteLimiter(sched, 2, 1)

	if redisAddr := os.Getenv("FLEET_REDIS_ADDR"); redisAddr != "" {
		board := os.Getenv("FLEET_BOARD_NAME")
		if board == "" {
			hostname, _ := os.Hostname()
			board = hostname
		}
		pub, err := fleet.NewPublisher(ctx, redisAddr, os.Getenv("FLEET_REDIS_PASSWORD"), 0, "mlfq:fleet", board, sched.OccupancyByLevel)
		if err != nil {
			log.Printf("⚠️ fleet publisher unavailable, continuing without fleet telemetry: %v", err)
		} else {
			defer pub.Close()
			go pub.Run(ctx, 2*time.Second)
			log.Printf("✅ publishing fleet telemetry to %s as board %q", redisAddr, board)
		}
	}

	if os.Getenv("SPAWN_DEMO_WORKLOADS") == "true" {
		spawnDemoWorkloads(sim, sched)
	}

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/ws/transitions", hub.HandleStream)

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/scheduler/stats", func(w http.ResponseWriter, _ *http.Request) {
		type slotView struct {
			Index   int    `json:"index"`
			Task    uint64 `json:"task"`
			Level   string `json:"level"`
			Burst   uint32 `json:"burst"`
			Quantum uint32 `json:"quantum"`
		}
		var out []slotView
		for i := 0; i < sched.Capacity(); i++ {
			rec, ok := sched.Stats(i)
			if !ok {
				continue
			}
			out = append(out, slotView{
				Index:   i,
				Task:    uint64(rec.Task),
				Level:   rec.Level.String(),
				Burst:   rec.Burst,
				Quantum: rec.Quantum,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	http.HandleFunc("/scheduler/register", func(w http.ResponseWriter, r *http.Request) {
		task := r.URL.Query().Get("task")
		id, err := strconv.ParseUint(task, 10, 64)
		if err != nil {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}
		outcome, err := sched.Register(platform.TaskHandle(id))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, outcome.String())
	})

	http.HandleFunc("/scheduler/promote", func(w http.ResponseWriter, r *http.Request) {
		task := r.URL.Query().Get("task")
		id, err := strconv.ParseUint(task, 10, 64)
		if err != nil {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}
		guard.Promote(platform.TaskHandle(id))
		w.WriteHeader(http.StatusAccepted)
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("mlfqd listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func spawnDemoWorkloads(sim *platform.Sim, sched *mlfq.Scheduler) {
	interactiveBody := workloads.Interactive(sim)
	h, err := sim.CreateTask("interactive-demo", 0, func(h platform.TaskHandle, stop <-chan struct{}) {
		if _, err := sched.Register(h); err != nil {
			log.Printf("demo interactive task: register failed: %v", err)
			return
		}
		interactiveBody(h, stop)
	})
	if err != nil {
		log.Printf("failed to spawn interactive demo workload: %v", err)
	} else {
		log.Printf("spawned interactive demo workload as task %d", h)
	}

	for i := 0; i < 3; i++ {
		heavyBody := workloads.CPUHeavy(sim)
		h, err := sim.CreateTask(fmt.Sprintf("cpu-heavy-demo-%d", i), 0, func(h platform.TaskHandle, stop <-chan struct{}) {
			if _, err := sched.Register(h); err != nil {
				log.Printf("demo cpu-heavy task: register failed: %v", err)
				return
			}
			heavyBody(h, stop)
		})
		if err != nil {
			log.Printf("failed to spawn cpu-heavy demo workload %d: %v", i, err)
			continue
		}
		log.Printf("spawned cpu-heavy demo workload as task %d", h)
	}
}
