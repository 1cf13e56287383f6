package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Cadenza/cache"
	"Cadenza/config"
	"Cadenza/core/library"
	"Cadenza/core/queue"
	"Cadenza/db"
	"Cadenza/logger"
	"Cadenza/repository"
	"Cadenza/storage"

	"github.com/gorilla/mux"
)

// Start wires the application together and runs the HTTP server until
// SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis")

	artworkStore, err := storage.NewArtworkStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize artwork storage", logger.ErrorField(err))
	}

	mediaIndex := repository.NewMySQLMediaIndex(db.DB)
	playlistRepo, err := repository.NewGormPlaylistRepository(db.GormDB)
	if err != nil {
		logger.Fatal("failed to initialize playlist repository", logger.ErrorField(err))
	}

	scanCache := cache.NewScanCache(db.RedisClient)
	overrides := cache.NewArtworkOverrides(db.RedisClient)
	bookmarks := cache.NewOpenedFiles(db.RedisClient)
	playbackStore := cache.NewPlaybackState(db.RedisClient)

	scanner := library.NewScanner(mediaIndex, scanCache, overrides, bookmarks,
		library.FileExtractor{}, library.Options{
			MinTrackDuration: cfg.MinTrackDuration,
			ScanCacheMaxAge:  cfg.ScanCacheMaxAge,
		})

	manager := queue.NewManager(queue.NopSink{}, playbackStore)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	outcome := scanner.LoadOrRefresh(startCtx)
	logger.Info("library ready",
		logger.String("status", string(outcome.Status)),
		logger.Int("tracks", outcome.TrackCount))
	restoreQueue(startCtx, manager, playbackStore, scanner)
	cancelStart()

	watcher, err := library.NewWatcher(scanner, cfg.MusicDirs, 2*time.Second)
	if err != nil {
		logger.Warn("music directory watcher disabled", logger.ErrorField(err))
	} else {
		defer watcher.Close()
	}

	apiHandler := NewAPIHandler(manager, scanner, playlistRepo, mediaIndex, artworkStore)
	hub := NewStateHub(manager, scanner)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Library
	router.HandleFunc("/api/library/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/library/refresh", apiHandler.RefreshHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/library/open", apiHandler.OpenFileHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/library/artwork/{media_id}", apiHandler.SaveArtworkHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/media/changed", apiHandler.MediaChangedHandler).Methods(http.MethodPost)
	router.PathPrefix("/artwork/").HandlerFunc(apiHandler.ServeArtworkHandler).Methods(http.MethodGet)

	// Queue
	router.HandleFunc("/api/queue", apiHandler.GetQueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue", apiHandler.SetQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue", apiHandler.ClearQueueHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/queue/visible", apiHandler.GetVisibleQueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue/stats", apiHandler.GetQueueStatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue/play-next", apiHandler.PlayNextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/user-queue", apiHandler.AddToUserQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/transient", apiHandler.ClearTransientHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/queue/move", apiHandler.MoveHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/items/{uid}", apiHandler.RemoveByUIDHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/queue/index/{index}", apiHandler.RemoveAtHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/queue/shuffle", apiHandler.SetShuffleHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/queue/repeat", apiHandler.SetRepeatHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/queue/next", apiHandler.NextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/previous", apiHandler.PreviousHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/track-changed", apiHandler.TrackChangedHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/position", apiHandler.PositionHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/source/{source_id}", apiHandler.RemoveSourceHandler).Methods(http.MethodDelete)

	// Playlists (queue sources)
	router.HandleFunc("/api/playlists", apiHandler.ListPlaylistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", apiHandler.CreatePlaylistHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}", apiHandler.GetPlaylistHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", apiHandler.DeletePlaylistHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/tracks", apiHandler.ReplacePlaylistTracksHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{id}/play", apiHandler.PlayPlaylistHandler).Methods(http.MethodPost)

	// State feed
	router.HandleFunc("/ws/state", hub.ServeWS)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logger.ErrorField(err))
	}
}

// restoreQueue rebuilds the last known queue against the freshly loaded
// library. A missing or empty tuple leaves the queue empty.
func restoreQueue(ctx context.Context, manager *queue.Manager, store queue.StateStore, scanner *library.Scanner) {
	persisted, err := store.LoadPlayback(ctx)
	if err != nil {
		logger.Warn("failed to load persisted playback state", logger.ErrorField(err))
		return
	}
	if persisted == nil {
		return
	}
	if err := manager.RestoreFromPersisted(ctx, *persisted, scanner.TrackByMediaID); err != nil {
		logger.Warn("failed to restore queue", logger.ErrorField(err))
		return
	}
	logger.Info("queue restored",
		logger.Int("items", manager.Size()),
		logger.Int("currentIndex", manager.CurrentIndex()))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
