package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/clock"
	appcfg "github.com/on62/cairo-board/internal/config"
	"github.com/on62/cairo-board/internal/gamestore"
	"github.com/on62/cairo-board/internal/notation"
	"github.com/on62/cairo-board/internal/obslog"
	"github.com/on62/cairo-board/internal/uci"
	"github.com/on62/cairo-board/pkg/enginedto"
)

func main() {
	modeFlag := flag.String("mode", "engine-black", "engine-white | engine-black | analysis")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	mode, err := parseMode(*modeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	budget := time.Duration(cfg.TimeControlMs) * time.Millisecond
	gameClock := clock.New(budget)

	adapter, err := uci.Spawn(ctx, uci.Config{
		EnginePath:   cfg.EnginePath,
		ReadyTimeout: time.Duration(cfg.ReadyTimeoutMs) * time.Millisecond,
		ReadRetryMax: cfg.ReadRetryMax,
		Options:      cfg.EngineOptions(),
		ExtraOptions: cfg.ExtraOptions,
		Clock:        gameClock,
	})
	if err != nil {
		log.Fatalf("engine spawn error: %v", err)
	}
	defer adapter.Close()

	var store *gamestore.Store
	if cfg.RedisURL != "" {
		store, err = gamestore.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("game store init error: %v", err)
		}
		defer store.Close()
	}
	var repo *gamestore.Repository
	if cfg.DatabaseURL != "" {
		repo, err = gamestore.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("game repository init error: %v", err)
		}
		defer repo.Close()
	}

	rec := newRecorder(adapter, mode, budget)

	adapter.OnEvent(func(ev uci.Event) {
		switch ev.Kind {
		case uci.EventEngineName:
			fmt.Printf("engine: %s\n", ev.Name)
		case uci.EventMoveAccepted:
			if ev.Promotion != uci.NoPromotion {
				fmt.Printf("engine plays %s (promotes to %s)\n", ev.Move, ev.Promotion)
			} else {
				fmt.Printf("engine plays %s\n", ev.Move)
			}
			if store != nil {
				if err := store.Save(ctx, rec.snapshot()); err != nil {
					obslog.L().Warn("game_snapshot_failed", zap.Error(err))
				}
			}
		case uci.EventAnalysisScore:
			fmt.Printf("eval %s\n", ev.Score)
		case uci.EventAnalysisBestLine:
			line := ev.Line
			if san, err := notation.SANLine(adapter.State().Moves, ev.Line); err == nil && len(san) > 0 {
				line = san
			}
			fmt.Printf("line %s\n", strings.Join(line, " "))
		case uci.EventAnalysisNodesPerSecond:
			fmt.Printf("speed %s\n", ev.NodesPerSec)
		case uci.EventEngineLost:
			fmt.Println("engine process lost, shutting down")
			stop()
		}
	})

	if err := adapter.StartGame(ctx, mode, budget); err != nil && !errors.Is(err, uci.ErrReadyTimeout) {
		log.Fatalf("start game error: %v", err)
	}
	fmt.Printf("game started in %s mode; enter coordinate moves (e2e4), or resign/quit\n", mode)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	method := "abandoned"
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			switch strings.ToLower(line) {
			case "":
			case "quit", "exit":
				break loop
			case "resign":
				method = "resignation"
				break loop
			default:
				if err := adapter.SubmitUserMove(ctx, line); err != nil {
					if errors.Is(err, uci.ErrEngineLost) {
						break loop
					}
					fmt.Printf("rejected: %v\n", err)
				}
			}
		}
	}

	if repo != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.SaveResult(saveCtx, rec.snapshot(), method); err != nil {
			obslog.L().Error("game_archive_failed", zap.Error(err))
		}
	}
}

func parseMode(s string) (uci.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "engine-white", "white":
		return uci.ModeEngineWhite, nil
	case "engine-black", "black":
		return uci.ModeEngineBlack, nil
	case "analysis":
		return uci.ModeAnalysis, nil
	default:
		return uci.ModeIdle, fmt.Errorf("unknown mode %q (want engine-white, engine-black or analysis)", s)
	}
}

// recorder rebuilds the persisted record from adapter snapshots so the
// event goroutine and the main loop never race on shared fields.
type recorder struct {
	mu        sync.Mutex
	adapter   *uci.Adapter
	mode      uci.Mode
	budget    time.Duration
	startedAt time.Time
}

func newRecorder(a *uci.Adapter, mode uci.Mode, budget time.Duration) *recorder {
	return &recorder{adapter: a, mode: mode, budget: budget, startedAt: time.Now()}
}

func (r *recorder) snapshot() *enginedto.GameRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.adapter.State()
	rec := &enginedto.GameRecord{
		SessionID:   r.adapter.SessionID(),
		EngineName:  st.EngineName,
		Mode:        r.mode.String(),
		MovesUCI:    st.Moves,
		TimeControl: fmt.Sprintf("%d", int(r.budget.Seconds())),
		StartedAt:   r.startedAt,
		UpdatedAt:   time.Now(),
	}
	if san, err := notation.SANHistory(st.Moves); err == nil {
		rec.MovesSAN = san
	}
	return rec
}
